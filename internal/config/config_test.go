package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

func TestLoadOptions_DefaultsWhenNothingSet(t *testing.T) {
	v := viper.New()
	o := LoadOptions(v)
	want := Defaults()
	if !reflect.DeepEqual(o, want) {
		t.Errorf("LoadOptions() = %+v, want defaults %+v", o, want)
	}
}

func TestLoadOptions_OverridesFromFlags(t *testing.T) {
	v := viper.New()
	v.Set("output", "/var/dumps/job1")
	v.Set("threads", 8)
	v.Set("compression", "zstd")
	v.Set("dialect", "tsv")
	v.Set("include-schemas", "shop, billing")

	o := LoadOptions(v)
	if o.OutputURL != "/var/dumps/job1" {
		t.Errorf("OutputURL = %q, want /var/dumps/job1", o.OutputURL)
	}
	if o.Threads != 8 {
		t.Errorf("Threads = %d, want 8", o.Threads)
	}
	if o.Compression != dumpmodel.CompressionZstd {
		t.Errorf("Compression = %q, want zstd", o.Compression)
	}
	if o.Dialect != dumpmodel.DialectTSV {
		t.Errorf("Dialect = %q, want tsv", o.Dialect)
	}
	if got := o.IncludeSchemas; len(got) != 2 || got[0] != "shop" || got[1] != "billing" {
		t.Errorf("IncludeSchemas = %v, want [shop billing]", got)
	}
}

func TestLoadConnection_FallsBackToConfigFileKeys(t *testing.T) {
	v := viper.New()
	v.Set("connections.default.host", "db.internal")
	v.Set("connections.default.port", 3307)
	v.Set("connections.default.user", "dumper")

	cfg := LoadConnection(v)
	if cfg.Host != "db.internal" {
		t.Errorf("Host = %q, want db.internal", cfg.Host)
	}
	if cfg.Port != 3307 {
		t.Errorf("Port = %d, want 3307", cfg.Port)
	}
	if cfg.User != "dumper" {
		t.Errorf("User = %q, want dumper", cfg.User)
	}
}

func TestLoadConnection_FlagTakesPrecedenceOverConfigFile(t *testing.T) {
	v := viper.New()
	v.Set("connections.default.host", "db.internal")
	v.Set("host", "override.internal")

	cfg := LoadConnection(v)
	if cfg.Host != "override.internal" {
		t.Errorf("Host = %q, want override.internal", cfg.Host)
	}
}

func TestLoadConnection_DefaultsWhenNothingSet(t *testing.T) {
	v := viper.New()
	cfg := LoadConnection(v)
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.Port != 3306 {
		t.Errorf("Port = %d, want 3306", cfg.Port)
	}
}
