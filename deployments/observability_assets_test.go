package deployments

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Record string            `yaml:"record"`
			Alert  string            `yaml:"alert"`
			Expr   string            `yaml:"expr"`
			Labels map[string]string `yaml:"labels"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

func TestPrometheusRecordingRulesUseExportedMetrics(t *testing.T) {
	rules := readRuleFile(t, "querypilot_recording_rules.yaml")

	records := map[string]string{}
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			records[rule.Record] = rule.Expr
		}
	}
	required := map[string]string{
		"querypilot:generation_latency_ms_p95": "querypilot_generation_latency_ms_bucket",
		"querypilot:query_latency_ms_p95":      "querypilot_query_latency_ms_bucket",
		"querypilot:question_error_ratio_15m":  "querypilot_questions_total",
		"querypilot:query_failure_ratio_15m":   "querypilot_questions_total",
		"querypilot:http_error_rate_5m":        "querypilot_http_requests_total",
	}
	for record, metric := range required {
		expr, ok := records[record]
		if !ok {
			t.Fatalf("recording rules missing record %q", record)
		}
		if !strings.Contains(expr, metric) {
			t.Fatalf("record %q expr %q does not reference %q", record, expr, metric)
		}
	}
}

func TestPrometheusAlertsReferenceRecordsAndSeverity(t *testing.T) {
	recording := readRuleFile(t, "querypilot_recording_rules.yaml")
	known := map[string]bool{}
	for _, group := range recording.Groups {
		for _, rule := range group.Rules {
			known[rule.Record] = true
		}
	}

	alerts := readRuleFile(t, "querypilot_rules.yaml")
	count := 0
	for _, group := range alerts.Groups {
		for _, rule := range group.Rules {
			if rule.Alert == "" {
				t.Fatalf("group %q has a rule without alert name", group.Name)
			}
			severity := rule.Labels["severity"]
			if severity != "warning" && severity != "critical" {
				t.Fatalf("alert %q severity = %q", rule.Alert, severity)
			}
			record := strings.Fields(rule.Expr)[0]
			if !known[record] {
				t.Fatalf("alert %q references unknown record %q", rule.Alert, record)
			}
			count++
		}
	}
	if count == 0 {
		t.Fatal("no alerts defined")
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	content := readAsset(t, "prometheus-scrape.example.yaml")

	var scrape struct {
		RuleFiles     []string `yaml:"rule_files"`
		ScrapeConfigs []struct {
			JobName     string `yaml:"job_name"`
			MetricsPath string `yaml:"metrics_path"`
		} `yaml:"scrape_configs"`
	}
	if err := yaml.Unmarshal(content, &scrape); err != nil {
		t.Fatalf("parse scrape example: %v", err)
	}
	if len(scrape.ScrapeConfigs) != 1 || scrape.ScrapeConfigs[0].JobName != "querypilot-api" {
		t.Fatalf("scrape configs = %+v", scrape.ScrapeConfigs)
	}
	if scrape.ScrapeConfigs[0].MetricsPath != "/v1/metrics" {
		t.Fatalf("metrics_path = %q", scrape.ScrapeConfigs[0].MetricsPath)
	}
	for _, name := range []string{"querypilot_rules.yaml", "querypilot_recording_rules.yaml"} {
		found := false
		for _, file := range scrape.RuleFiles {
			found = found || file == name
		}
		if !found {
			t.Fatalf("scrape example missing rule file %q", name)
		}
	}
}

func readRuleFile(t *testing.T, name string) ruleFile {
	t.Helper()
	var rules ruleFile
	if err := yaml.Unmarshal(readAsset(t, name), &rules); err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	if len(rules.Groups) == 0 {
		t.Fatalf("%s has no groups", name)
	}
	return rules
}

func readAsset(t *testing.T, name string) []byte {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to resolve test file path")
	}
	content, err := os.ReadFile(filepath.Join(filepath.Dir(file), "observability", "prometheus", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return content
}
