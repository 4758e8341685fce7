package simplpedpop

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type scenarioFixture struct {
	Scenarios []struct {
		Name string `yaml:"name"`
		T    int    `yaml:"t"`
		N    int    `yaml:"n"`
	} `yaml:"scenarios"`
}

// TestScenariosFromFixture loads a set of t/n combinations from a YAML
// fixture and checks the agreement property for each.
func TestScenariosFromFixture(t *testing.T) {
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	require.NoError(t, err)

	var fixture scenarioFixture
	require.NoError(t, yaml.Unmarshal(raw, &fixture))
	require.NotEmpty(t, fixture.Scenarios)

	for _, sc := range fixture.Scenarios {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			outs, coordOut := simulate(t, seeds(sc.N, "fixture-"+sc.Name+"-"), sc.T, sc.N)
			for i := 1; i < sc.N; i++ {
				require.True(t, outs[0].GroupPK.Equal(outs[i].GroupPK), "scenario %s: participant %d disagrees on group key", sc.Name, i)
			}
			require.True(t, outs[0].GroupPK.Equal(coordOut.GroupPK), "scenario %s: coordinator disagrees on group key", sc.Name)
		})
	}
}
