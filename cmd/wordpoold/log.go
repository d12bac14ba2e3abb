// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/sheegaon/wordpool/internal/engine"
	"github.com/sheegaon/wordpool/internal/gamedb"
	"github.com/sheegaon/wordpool/internal/ledger"
	"github.com/sheegaon/wordpool/internal/locks"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/internal/players"
	"github.com/sheegaon/wordpool/internal/queue"
	"github.com/sheegaon/wordpool/internal/results"
	"github.com/sheegaon/wordpool/internal/rounds"
	"github.com/sheegaon/wordpool/internal/rpcserver"
	"github.com/sheegaon/wordpool/internal/sweep"
	"github.com/sheegaon/wordpool/internal/votes"
)

// logWriter implements an io.Writer that outputs to both standard output
// and the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem.  A single backend logger is created and all
// subsystem loggers created from it will write to the backend.  When
// adding new subsystems, add the subsystem logger variable here and to
// the subsystemLoggers map.
var (
	backendLog = slog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	wpldLog = backendLog.Logger("WPLD")
	gamdLog = backendLog.Logger("GAMD")
	lockLog = backendLog.Logger("LOCK")
	phrsLog = backendLog.Logger("PHRS")
	ledgLog = backendLog.Logger("LEDG")
	queuLog = backendLog.Logger("QUEU")
	rondLog = backendLog.Logger("ROND")
	voteLog = backendLog.Logger("VOTE")
	resuLog = backendLog.Logger("RESU")
	playLog = backendLog.Logger("PLAY")
	sweeLog = backendLog.Logger("SWEE")
	engiLog = backendLog.Logger("ENGI")
	rpcsLog = backendLog.Logger("RPCS")
)

// Initialize package-global logger variables.
func init() {
	gamedb.UseLogger(gamdLog)
	locks.UseLogger(lockLog)
	phrase.UseLogger(phrsLog)
	ledger.UseLogger(ledgLog)
	queue.UseLogger(queuLog)
	rounds.UseLogger(rondLog)
	votes.UseLogger(voteLog)
	results.UseLogger(resuLog)
	players.UseLogger(playLog)
	sweep.UseLogger(sweeLog)
	engine.UseLogger(engiLog)
	rpcserver.UseLogger(rpcsLog)
}

// subsystemLoggers maps each subsystem identifier to its associated
// logger.
var subsystemLoggers = map[string]slog.Logger{
	"WPLD": wpldLog,
	"GAMD": gamdLog,
	"LOCK": lockLog,
	"PHRS": phrsLog,
	"LEDG": ledgLog,
	"QUEU": queuLog,
	"ROND": rondLog,
	"VOTE": voteLog,
	"RESU": resuLog,
	"PLAY": playLog,
	"SWEE": sweeLog,
	"ENGI": engiLog,
	"RPCS": rpcsLog,
}

// initLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory.  It must be
// called before the package-global log rotator variables are used.
func initLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}
	logRotator = r
}

// setLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.  Uninitialized subsystems are dynamically
// created as needed.
func setLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := slog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the
// passed level.
func setLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// supportedSubsystems returns a sorted slice of the supported
// subsystems for logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// validLogLevel returns whether logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := slog.LevelFromString(logLevel)
	return ok
}
