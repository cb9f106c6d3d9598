package config

import "time"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Assistant search backends.
const (
	SearchBackendSQL   = "sql"
	SearchBackendBleve = "bleve"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/skfed/data/db/skfed.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/skfed/data/indices/bleve"
	}
	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = "https://api.openai.com"
	}
	if cfg.Completion.Path == "" {
		cfg.Completion.Path = "/v1/chat/completions"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
	}
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = 0.7
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 1000
	}
	if cfg.Completion.APIKeyEnv == "" {
		cfg.Completion.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Assistant.UpcomingEventsLimit == 0 {
		cfg.Assistant.UpcomingEventsLimit = 5
	}
	if cfg.Assistant.AnnouncementsLimit == 0 {
		cfg.Assistant.AnnouncementsLimit = 3
	}
	if cfg.Assistant.PopularEventsLimit == 0 {
		cfg.Assistant.PopularEventsLimit = 5
	}
	if cfg.Assistant.SearchLimit == 0 {
		cfg.Assistant.SearchLimit = 5
	}
	if cfg.Assistant.SearchBackend == "" {
		cfg.Assistant.SearchBackend = SearchBackendSQL
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".xlsx"}
	}
}
