package config

import "time"

// ConfigFileName is the configuration file looked up in the config dir.
const ConfigFileName = "chatbi.yaml"

func boolPtr(b bool) *bool { return &b }

// BuiltinConfig returns the built-in configuration. Values in chatbi.yaml
// are merged over it.
func BuiltinConfig() *ChatBIYAMLConfig {
	return &ChatBIYAMLConfig{
		LLM: &LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o-mini",
			Timeout:   2 * time.Minute,
		},
		Defaults: &AgentDefaults{
			MaxTurns:    10,
			TurnTimeout: 90 * time.Second,
			ToolTimeout: 30 * time.Second,
			Stream:      boolPtr(false),
		},
		Agents: map[string]AgentConfig{
			AgentSQL: {
				MaxTurns: 10,
				Tools: []string{
					"tool_execute_sql_and_fetch_top_10",
					"tool_get_table_schema",
					"tool_get_all_tables",
					"tool_update_metadata_description",
				},
			},
			AgentFeedback: {
				MaxTurns: 5,
				Stream:   boolPtr(true),
				Tools: []string{
					"tool_update_metadata_description",
					"tool_update_business_term",
				},
			},
		},
		Database: &DatabaseConfig{
			DataDriver:   "sqlite",
			DataDSN:      "data/data.db",
			MetadataPath: "data/metadata.db",
		},
		Events: &EventsConfig{
			BufferSize:   1024,
			HistorySize:  200,
			WriteTimeout: 5 * time.Second,
		},
		Server: &ServerConfig{
			Addr: ":8000",
		},
	}
}
