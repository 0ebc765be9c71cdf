package config

const (
	defaultOutputDir          = "~/.local/share/newsreel/output"
	defaultStagingDir         = "~/.local/share/newsreel/staging"
	defaultLogDir             = "~/.local/share/newsreel/logs"
	defaultProfilesPath       = "~/.config/newsreel/profiles.json"
	defaultAPIBind            = "127.0.0.1:7845"
	defaultFetchTimeout       = 60
	defaultFetchConcurrency   = 4
	defaultFetchRequestsPerS  = 2
	defaultUserAgent          = "newsreel/0.1"
	defaultSilenceMillis      = 2000
	defaultSampleRate         = 44100
	defaultChannels           = 2
	defaultBitrate            = "128k"
	defaultKeepCount          = 10
	defaultMaxAgeDays         = 14
	defaultStagingMaxAgeHours = 24
	defaultPruneInterval      = 60
	defaultSMTPPort           = 587
	defaultSenderName         = "Newsreel"
	defaultMaxAttachmentMiB   = 25
	defaultEmailTimeout       = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
			ProfilesPath: defaultProfilesPath,
			APIBind:      defaultAPIBind,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeout,
			MaxConcurrent:  defaultFetchConcurrency,
			RequestsPerSec: defaultFetchRequestsPerS,
			UserAgent:      defaultUserAgent,
		},
		Combine: Combine{
			SilenceMillis: defaultSilenceMillis,
			SampleRate:    defaultSampleRate,
			Channels:      defaultChannels,
			Bitrate:       defaultBitrate,
		},
		Retention: Retention{
			KeepCount:           defaultKeepCount,
			MaxAgeDays:          defaultMaxAgeDays,
			StagingMaxAgeHours:  defaultStagingMaxAgeHours,
			PruneIntervalMinute: defaultPruneInterval,
		},
		Email: Email{
			SMTPPort:         defaultSMTPPort,
			SenderName:       defaultSenderName,
			MaxAttachmentMiB: defaultMaxAttachmentMiB,
			TimeoutSeconds:   defaultEmailTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
