// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/sheegaon/wordpool/internal/params"
	"github.com/sheegaon/wordpool/internal/phrase"
	"github.com/sheegaon/wordpool/sampleconfig"
)

const (
	defaultConfigFilename = "wordpoold.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "wordpoold.log"
	defaultDataDirname    = "data"
	defaultListener       = "127.0.0.1:8575"
	defaultDebugLevel     = "info"
	defaultDBType         = "leveldb"
	defaultMaxClients     = 100
	defaultEmbedTimeout   = 10 * time.Second
	defaultSweepInterval  = 5 * time.Second
)

var defaultHomeDir = appDataDir()

// appDataDir returns the default home directory for wordpoold data and
// configuration.
func appDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".wordpoold")
}

// config defines the configuration options for wordpoold.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	HomeDir     string `short:"A" long:"appdata" description:"Path to application home directory"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	NoFileLogging bool `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Listeners  []string `long:"listen" description:"Add an interface/port to listen for RPC connections (default port: 8575)"`
	MaxClients int      `long:"rpcmaxclients" description:"Max number of concurrent RPC clients"`

	DBType   string `long:"dbtype" description:"Database backend to use for the game state {leveldb, memdb}"`
	Wordlist string `long:"wordlist" description:"Path to a custom dictionary word list (one word per line); empty uses the built-in list"`

	EmbedURL     string        `long:"embedurl" description:"URL of the phrase embedding service; empty rejects all copy phrases"`
	EmbedTimeout time.Duration `long:"embedtimeout" description:"Timeout for embedding service requests"`
	Proxy        string        `long:"proxy" description:"Connect to the embedding service via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser    string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass    string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`

	SweepInterval time.Duration `long:"sweepinterval" description:"Interval between timeout/finalization sweeps"`

	// Game economy overrides.
	StartingBalance   int64 `long:"startingbalance" description:"Balance granted to new players"`
	DailyBonus        int64 `long:"dailybonus" description:"Once-per-day bonus amount"`
	PromptCost        int64 `long:"promptcost" description:"Entry cost of a prompt round"`
	CopyCostNormal    int64 `long:"copycost" description:"Entry cost of a copy round"`
	CopyCostDiscount  int64 `long:"copycostdiscount" description:"Entry cost of a copy round while the discount is active"`
	VoteCost          int64 `long:"votecost" description:"Entry cost of a vote round"`
	VotePayoutCorrect int64 `long:"votepayout" description:"Immediate payout for a correct vote"`
	PhrasesetPool     int64 `long:"prizepool" description:"Base prize pool of a phraseset"`

	MaxOutstandingPrompts int `long:"maxoutstandingprompts" description:"Max prompts a player may have in flight"`
	CopyDiscountThreshold int `long:"copydiscountthreshold" description:"Queue depth above which the copy discount activates"`

	PromptRoundSeconds int `long:"promptroundseconds" description:"Prompt round duration in seconds"`
	CopyRoundSeconds   int `long:"copyroundseconds" description:"Copy round duration in seconds"`
	VoteRoundSeconds   int `long:"voteroundseconds" description:"Vote round duration in seconds"`
	GraceSeconds       int `long:"graceseconds" description:"Post-expiry submission grace period in seconds"`

	VoteFinalizeMax         int `long:"votefinalizemax" description:"Vote count at which a phraseset finalizes immediately"`
	FifthVoteCloseSeconds   int `long:"fifthvotecloseseconds" description:"Seconds after the fifth vote before finalization"`
	ThirdVoteTimeoutSeconds int `long:"thirdvotetimeoutseconds" description:"Seconds after the third vote before a quiet phraseset finalizes"`
	AbandonmentCooldownHrs  int `long:"abandonmentcooldownhours" description:"Hours a player is blocked from re-drawing a prompt they abandoned"`
	LockTimeoutSeconds      int `long:"locktimeoutseconds" description:"Advisory lock acquisition timeout in seconds"`

	// Phrase validation overrides.
	PhraseMinWords           int     `long:"phraseminwords" description:"Minimum number of words in a phrase"`
	PhraseMaxWords           int     `long:"phrasemaxwords" description:"Maximum number of words in a phrase"`
	PhraseMaxLength          int     `long:"phrasemaxlength" description:"Maximum phrase length in characters"`
	PhraseMinCharPerWord     int     `long:"phrasemincharperword" description:"Minimum characters per word"`
	PhraseMaxCharPerWord     int     `long:"phrasemaxcharperword" description:"Maximum characters per word"`
	SignificantWordMinLength int     `long:"significantwordminlength" description:"Minimum length of a word counted in overlap checks between phrases"`
	SimilarityThreshold      float64 `long:"similaritythreshold" description:"Embedding cosine similarity at or above which a copy phrase is rejected"`
	WordSimilarityThreshold  float64 `long:"wordsimilaritythreshold" description:"Common-subsequence ratio at or above which two words are treated as overlapping"`
}

// defaultConfig returns the config with every option at its default.
func defaultConfig() *config {
	p := params.Default()
	pc := phrase.DefaultConfig()
	return &config{
		ConfigFile:   filepath.Join(defaultHomeDir, defaultConfigFilename),
		HomeDir:      defaultHomeDir,
		DataDir:      filepath.Join(defaultHomeDir, defaultDataDirname),
		LogDir:       filepath.Join(defaultHomeDir, defaultLogDirname),
		DebugLevel:   defaultDebugLevel,
		Listeners:    nil,
		MaxClients:   defaultMaxClients,
		DBType:       defaultDBType,
		EmbedTimeout: defaultEmbedTimeout,

		SweepInterval: defaultSweepInterval,

		StartingBalance:   p.StartingBalance,
		DailyBonus:        p.DailyBonus,
		PromptCost:        p.PromptCost,
		CopyCostNormal:    p.CopyCostNormal,
		CopyCostDiscount:  p.CopyCostDiscount,
		VoteCost:          p.VoteCost,
		VotePayoutCorrect: p.VotePayoutCorrect,
		PhrasesetPool:     p.PhrasesetPool,

		MaxOutstandingPrompts: p.MaxOutstandingPrompts,
		CopyDiscountThreshold: p.CopyDiscountThreshold,

		PromptRoundSeconds: int(p.PromptRoundDuration / time.Second),
		CopyRoundSeconds:   int(p.CopyRoundDuration / time.Second),
		VoteRoundSeconds:   int(p.VoteRoundDuration / time.Second),
		GraceSeconds:       int(p.GracePeriod / time.Second),

		VoteFinalizeMax:         p.VoteFinalizeMax,
		FifthVoteCloseSeconds:   int(p.FifthVoteCloseAfter / time.Second),
		ThirdVoteTimeoutSeconds: int(p.ThirdVoteTimeoutAfter / time.Second),
		AbandonmentCooldownHrs:  int(p.AbandonmentCooldown / time.Hour),
		LockTimeoutSeconds:      int(p.LockTimeout / time.Second),

		PhraseMinWords:           pc.MinWords,
		PhraseMaxWords:           pc.MaxWords,
		PhraseMaxLength:          pc.MaxLength,
		PhraseMinCharPerWord:     pc.MinCharPerWord,
		PhraseMaxCharPerWord:     pc.MaxCharPerWord,
		SignificantWordMinLength: pc.SignificantMinLen,
		SimilarityThreshold:      pc.SimilarityThreshold,
		WordSimilarityThreshold:  pc.WordSimilarityThreshold,
	}
}

// phraseConfig converts the configured overrides into validation
// thresholds.
func (cfg *config) phraseConfig() phrase.Config {
	return phrase.Config{
		MinWords:                cfg.PhraseMinWords,
		MaxWords:                cfg.PhraseMaxWords,
		MaxLength:               cfg.PhraseMaxLength,
		MinCharPerWord:          cfg.PhraseMinCharPerWord,
		MaxCharPerWord:          cfg.PhraseMaxCharPerWord,
		SignificantMinLen:       cfg.SignificantWordMinLength,
		SimilarityThreshold:     cfg.SimilarityThreshold,
		WordSimilarityThreshold: cfg.WordSimilarityThreshold,
	}
}

// gameParams converts the configured overrides into engine parameters.
func (cfg *config) gameParams() *params.Params {
	return &params.Params{
		StartingBalance:   cfg.StartingBalance,
		DailyBonus:        cfg.DailyBonus,
		PromptCost:        cfg.PromptCost,
		CopyCostNormal:    cfg.CopyCostNormal,
		CopyCostDiscount:  cfg.CopyCostDiscount,
		VoteCost:          cfg.VoteCost,
		VotePayoutCorrect: cfg.VotePayoutCorrect,
		PhrasesetPool:     cfg.PhrasesetPool,

		MaxOutstandingPrompts: cfg.MaxOutstandingPrompts,
		CopyDiscountThreshold: cfg.CopyDiscountThreshold,

		PromptRoundDuration: time.Duration(cfg.PromptRoundSeconds) * time.Second,
		CopyRoundDuration:   time.Duration(cfg.CopyRoundSeconds) * time.Second,
		VoteRoundDuration:   time.Duration(cfg.VoteRoundSeconds) * time.Second,
		GracePeriod:         time.Duration(cfg.GraceSeconds) * time.Second,

		VoteFinalizeMax:       cfg.VoteFinalizeMax,
		FifthVoteCloseAfter:   time.Duration(cfg.FifthVoteCloseSeconds) * time.Second,
		ThirdVoteTimeoutAfter: time.Duration(cfg.ThirdVoteTimeoutSeconds) * time.Second,

		AbandonmentCooldown: time.Duration(cfg.AbandonmentCooldownHrs) * time.Hour,

		LockTimeout: time.Duration(cfg.LockTimeoutSeconds) * time.Second,
	}
}

// validDbType returns whether dbType is a supported database backend.
func validDbType(dbType string) bool {
	return dbType == "leveldb" || dbType == "memdb"
}

// createDefaultConfigFile copies the sample config to the given path so
// a fresh install has a commented file to edit.
func createDefaultConfigFile(destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte(sampleconfig.Wordpoold()), 0644)
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig(appName, version string) (*config, []string, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go %s %s/%s)\n", appName, version,
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// A custom appdata directory relocates everything that was not set
	// explicitly.
	if preCfg.HomeDir != defaultHomeDir {
		if preCfg.ConfigFile == cfg.ConfigFile {
			preCfg.ConfigFile = filepath.Join(preCfg.HomeDir,
				defaultConfigFilename)
		}
		if preCfg.DataDir == cfg.DataDir {
			preCfg.DataDir = filepath.Join(preCfg.HomeDir, defaultDataDirname)
		}
		if preCfg.LogDir == cfg.LogDir {
			preCfg.LogDir = filepath.Join(preCfg.HomeDir, defaultLogDirname)
		}
		*cfg = preCfg
	}

	// Write a default config file when none exists at the default
	// location.
	configFile := preCfg.ConfigFile
	if configFile == filepath.Join(defaultHomeDir, defaultConfigFilename) {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			if err := createDefaultConfigFile(configFile); err != nil {
				fmt.Fprintf(os.Stderr, "failed to create default config "+
					"file: %v\n", err)
			}
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	remaining, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	if !validDbType(cfg.DBType) {
		return nil, nil, fmt.Errorf("invalid dbtype %q: supported types "+
			"are leveldb and memdb", cfg.DBType)
	}
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []string{defaultListener}
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	// Validate the debug level(s) before the loggers come up.
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, fmt.Errorf("%w -- %s", err, usageDebugLevel)
	}

	return cfg, remaining, nil
}

const usageDebugLevel = "specify a level such as 'debug' or a list such " +
	"as 'GAME=trace,RPCS=debug'"

// parseAndSetDebugLevels attempts to parse the specified debug level and
// set the levels accordingly.  An appropriate error is returned if
// anything is invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("invalid debug level %q", debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs and set the
	// levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("invalid subsystem/level pair %q", logLevelPair)
		}
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, ok := subsystemLoggers[subsysID]; !ok {
			return fmt.Errorf("unknown subsystem %q -- valid subsystems %v",
				subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("invalid debug level %q", logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}
	return nil
}
