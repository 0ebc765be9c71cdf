// Command newsreel is the bulletin aggregator CLI. It runs the daemon
// (serve), produces bulletins on demand (generate), and manages profiles,
// produced bulletins, run history, and configuration.
package main
