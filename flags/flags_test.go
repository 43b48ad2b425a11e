package flags

import (
	"strings"
	"testing"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names and aliases are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		for _, name := range flag.Names() {
			if _, ok := seenCLI[name]; ok {
				t.Errorf("duplicate flag %s", name)
				continue
			}
			seenCLI[name] = struct{}{}
		}
	}
}

// TestBetaFlags test that all flags starting with "beta." have "BETA_" in the env var, and vice versa.
func TestBetaFlags(t *testing.T) {
	for _, flag := range Flags {
		envFlag, ok := flag.(interface {
			GetEnvVars() []string
		})
		if !ok || len(envFlag.GetEnvVars()) == 0 { // skip flags without env-var support
			continue
		}
		name := flag.Names()[0]
		envName := envFlag.GetEnvVars()[0]
		if strings.HasPrefix(name, "beta.") {
			require.Contains(t, envName, "BETA_", "%q flag must contain BETA in env var to match \"beta.\" flag name", name)
		}
		if strings.Contains(envName, "BETA_") {
			require.True(t, strings.HasPrefix(name, "beta."), "%q flag must start with \"beta.\" in flag name to match \"BETA_\" env var", name)
		}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
			require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
		})
	}
}

func TestDefaults(t *testing.T) {
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			assert.Equal(t, uint64(5000), ctx.Uint64(Instructions.Name))
			assert.Equal(t, 8, ctx.Int(Threads.Name))
			assert.Equal(t, "", ctx.String(Filter.Name))
			assert.False(t, ctx.Bool(Stackless.Name))
			assert.False(t, ctx.Bool(Statistics.Name))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app", "a.yaml"}))
}

func TestShortAliases(t *testing.T) {
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			assert.Equal(t, uint64(100), ctx.Uint64(Instructions.Name))
			assert.Equal(t, "coin", ctx.String(Filter.Name))
			assert.Equal(t, 2, ctx.Int(Threads.Name))
			assert.True(t, ctx.Bool(Statistics.Name))
			assert.True(t, ctx.Bool(StateOnError.Name))
			assert.True(t, ctx.Bool(Verbose.Name))

			sources, err := CheckSources(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a.yaml", "b.yaml"}, sources)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app", "-i", "100", "-f", "coin", "-t", "2", "-s", "-g", "-v", "a.yaml", "b.yaml"}))
}

func TestCheckSourcesRequiresOne(t *testing.T) {
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			_, err := CheckSources(ctx)
			return err
		},
	}
	require.ErrorContains(t, app.Run([]string{"app"}), "at least one source file")
}
