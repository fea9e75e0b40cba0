package admission

import (
	"fmt"
	"os"
	"time"

	"sentinela-gateway/middleware/admission/application"
	"sentinela-gateway/middleware/admission/domain"

	"gopkg.in/yaml.v3"
)

// RulesFile descreve o arquivo YAML opcional de regras de admissão/anomalia.
// Campos ausentes caem nos padrões de domain.DefaultRules e
// application.DefaultThresholds.
type RulesFile struct {
	Windows struct {
		Short string `yaml:"short"`
		Long  string `yaml:"long"`
	} `yaml:"windows"`
	Categories struct {
		Auth    CategoryConfig `yaml:"auth"`
		API     CategoryConfig `yaml:"api"`
		General CategoryConfig `yaml:"general"`
	} `yaml:"categories"`
	Anomaly struct {
		FailedAuth         int64  `yaml:"failed_auth"`
		ClientErrors       int64  `yaml:"client_errors"`
		ServerErrors       int64  `yaml:"server_errors"`
		SuspiciousPatterns int64  `yaml:"suspicious_patterns"`
		Retention          string `yaml:"retention"`
	} `yaml:"anomaly"`
}

type CategoryConfig struct {
	Prefixes  []string `yaml:"prefixes"`
	PerMinute int64    `yaml:"per_minute"`
	PerHour   int64    `yaml:"per_hour"`
}

// LoadRulesFile lê e valida o arquivo de regras.
func LoadRulesFile(path string) (RulesFile, error) {
	var f RulesFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse rules file: %w", err)
	}
	if _, err := f.Rules(); err != nil {
		return f, err
	}
	if _, err := f.Retention(); err != nil {
		return f, err
	}
	return f, nil
}

// Rules materializa o arquivo em domain.Rules, preenchendo ausências com os
// padrões.
func (f RulesFile) Rules() (domain.Rules, error) {
	rules := domain.DefaultRules()

	if f.Windows.Short != "" {
		d, err := time.ParseDuration(f.Windows.Short)
		if err != nil || d <= 0 {
			return rules, fmt.Errorf("invalid windows.short %q", f.Windows.Short)
		}
		rules.ShortWindow = d
	}
	if f.Windows.Long != "" {
		d, err := time.ParseDuration(f.Windows.Long)
		if err != nil || d <= 0 {
			return rules, fmt.Errorf("invalid windows.long %q", f.Windows.Long)
		}
		rules.LongWindow = d
	}
	if rules.LongWindow < rules.ShortWindow {
		return rules, fmt.Errorf("windows.long (%s) must not be shorter than windows.short (%s)",
			rules.LongWindow, rules.ShortWindow)
	}

	if len(f.Categories.Auth.Prefixes) > 0 {
		rules.AuthPrefixes = f.Categories.Auth.Prefixes
	}
	if len(f.Categories.API.Prefixes) > 0 {
		rules.APIPrefixes = f.Categories.API.Prefixes
	}

	apply := func(c domain.Category, cfg CategoryConfig) error {
		rule := rules.Limits[c]
		if cfg.PerMinute != 0 {
			if cfg.PerMinute < 0 {
				return fmt.Errorf("categories.%s.per_minute must be > 0", c)
			}
			rule.PerMinute = cfg.PerMinute
		}
		if cfg.PerHour != 0 {
			if cfg.PerHour < 0 {
				return fmt.Errorf("categories.%s.per_hour must be > 0", c)
			}
			rule.PerHour = cfg.PerHour
		}
		rules.Limits[c] = rule
		return nil
	}
	if err := apply(domain.CategoryAuth, f.Categories.Auth); err != nil {
		return rules, err
	}
	if err := apply(domain.CategoryAPI, f.Categories.API); err != nil {
		return rules, err
	}
	if err := apply(domain.CategoryGeneral, f.Categories.General); err != nil {
		return rules, err
	}

	return rules, nil
}

// Thresholds materializa os limiares de anomalia do arquivo.
func (f RulesFile) Thresholds() application.Thresholds {
	t := application.DefaultThresholds()
	if f.Anomaly.FailedAuth > 0 {
		t.FailedAuth = f.Anomaly.FailedAuth
	}
	if f.Anomaly.ClientErrors > 0 {
		t.ClientErrors = f.Anomaly.ClientErrors
	}
	if f.Anomaly.ServerErrors > 0 {
		t.ServerErrors = f.Anomaly.ServerErrors
	}
	if f.Anomaly.SuspiciousPatterns > 0 {
		t.SuspiciousPatterns = f.Anomaly.SuspiciousPatterns
	}
	return t
}

// Retention devolve a janela de retenção dos registros de anomalia.
func (f RulesFile) Retention() (time.Duration, error) {
	if f.Anomaly.Retention == "" {
		return 15 * time.Minute, nil
	}
	d, err := time.ParseDuration(f.Anomaly.Retention)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid anomaly.retention %q", f.Anomaly.Retention)
	}
	return d, nil
}
