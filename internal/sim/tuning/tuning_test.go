package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := writeFile(t, `
tick_rate_hz: 20
world_size: [32, 32, 64]
bonding:
  min_strength: 0.4
  workers: 2
damage:
  enabled: false
`)
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 20 || tu.WorldSize[2] != 64 {
		t.Fatalf("overrides lost: %+v", tu)
	}
	if tu.Bonding.MinStrength != 0.4 || tu.Bonding.Workers != 2 {
		t.Fatalf("bonding: %+v", tu.Bonding)
	}
	if tu.Bonding.GrammarWeight != 0.75 || tu.Bonding.MaxCost != 20 {
		t.Fatalf("bonding defaults lost: %+v", tu.Bonding)
	}
	if tu.Damage.Enabled {
		t.Fatalf("damage should be disabled")
	}
	if tu.Damage.RepairEveryTicks != 20 || tu.Spatial.MaxOccupancy != 8 || tu.Spatial.RebuildEvery != 1000 {
		t.Fatalf("defaults lost: %+v %+v", tu.Damage, tu.Spatial)
	}
	if !tu.Registry.EnforceGrammar {
		t.Fatalf("enforce_grammar default lost")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	cases := map[string]string{
		"syntax":   "tick_rate_hz: [",
		"cost":     "bonding:\n  min_cost: 30\n  max_cost: 10\n",
		"negative": "world_size: [10, -1, 10]\n",
		"prob":     "damage:\n  max_probability: 1.5\n",
		"vent pos": "vent:\n  position: [1, 2]\n",
		"strength": "bonding:\n  min_strength: 2\n",
	}
	for name, body := range cases {
		_, err := Load(writeFile(t, body))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.Contains(err.Error(), "tuning.yaml") {
			t.Fatalf("%s: error should name the file: %v", name, err)
		}
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestShippedTuningMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := Defaults(); !reflect.DeepEqual(got, want) {
		t.Fatalf("configs/tuning.yaml drifted from Defaults():\n got %+v\nwant %+v", got, want)
	}
}
