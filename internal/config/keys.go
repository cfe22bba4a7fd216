package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "FAQBOT_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "FAQBOT_HF_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.HuggingFace.BaseURL = v.(string) },
	},
	{
		env: "FAQBOT_HF_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.HuggingFace.Model = v.(string) },
	},
	{
		env: "FAQBOT_HF_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.HuggingFace.APIToken = v.(string) },
	},
	{
		env: "FAQBOT_HF_TIMEOUT", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.HuggingFace.Timeout = v.(time.Duration) },
	},
	{
		env: "FAQBOT_SEMANTIC_THRESHOLD", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Matching.SemanticThreshold = v.(float64) },
	},
	{
		env: "FAQBOT_LEXICAL_THRESHOLD", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Matching.LexicalThreshold = v.(float64) },
	},
	{
		env: "FAQBOT_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "FAQBOT_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.API.Token = v.(string) },
	},
	{
		env: "FAQBOT_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
