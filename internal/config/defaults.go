package config

const (
	defaultWatchDir     = "~/.local/share/scenematch/watch"
	defaultLibraryDir   = "~/library"
	defaultAmbiguousDir = "~/.local/share/scenematch/ambiguous"
	defaultFailedDir    = "~/.local/share/scenematch/failed"
	defaultLogDir       = "~/.local/share/scenematch/logs"

	defaultProviderName      = "stashdb"
	defaultStashDBEndpoint   = "https://stashdb.org/graphql"
	defaultThePornDBEndpoint = "https://api.theporndb.net"
	defaultRequestTimeout    = 30
	defaultMinNameSimilarity = 0.85

	defaultPhashAlgorithm         = "phash"
	defaultAcceptDistance         = 6
	defaultAmbiguousMin           = 7
	defaultAmbiguousMax           = 12
	defaultDistanceMarginAccept   = 3
	defaultMajorityAcceptFraction = 0.7

	defaultPollInterval   = 30
	defaultTopNCandidates = 0 // keep all

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:     defaultWatchDir,
			LibraryDir:   defaultLibraryDir,
			AmbiguousDir: defaultAmbiguousDir,
			FailedDir:    defaultFailedDir,
			LogDir:       defaultLogDir,
		},
		Provider: Provider{
			Name:              defaultProviderName,
			Endpoint:          defaultStashDBEndpoint,
			RequestTimeout:    defaultRequestTimeout,
			MinNameSimilarity: defaultMinNameSimilarity,
			SearchPhash:       true,
		},
		Phash: Phash{
			Algorithm:              defaultPhashAlgorithm,
			AcceptDistance:         defaultAcceptDistance,
			AmbiguousMin:           defaultAmbiguousMin,
			AmbiguousMax:           defaultAmbiguousMax,
			DistanceMarginAccept:   defaultDistanceMarginAccept,
			MajorityAcceptFraction: defaultMajorityAcceptFraction,
		},
		Workflow: Workflow{
			PollInterval:   defaultPollInterval,
			TopNCandidates: defaultTopNCandidates,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
