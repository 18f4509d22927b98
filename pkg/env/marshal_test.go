package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Token   string        `env:"TOKEN,required,notEmpty"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"90s"`
	Limit   int           `env:"LIMIT" envDefault:"10"`
	Path    string        `env:"PATH_OVERRIDE"`
	Debug   bool          `env:"DEBUG"`
	hidden  string        `env:"HIDDEN"`
	NoTag   string
}

func TestMarshalEnv(t *testing.T) {
	c := &sample{Token: "abc", Timeout: 2 * time.Minute, Debug: true, hidden: "x"}

	got, err := MarshalEnv(c)
	require.NoError(t, err)

	assert.Equal(t, "TOKEN=abc\nTIMEOUT=2m0s\nDEBUG=true\n", got)
}

func TestMarshalEnv_RejectsNonPointer(t *testing.T) {
	_, err := MarshalEnv(sample{})
	require.Error(t, err)
}

func TestTemplate(t *testing.T) {
	got, err := Template(map[string]any{"Sample": &sample{}}, "Sample", "Missing")
	require.NoError(t, err)

	want := "# Sample\n" +
		"TOKEN=  # required\n" +
		"TIMEOUT=90s\n" +
		"LIMIT=10\n" +
		"# PATH_OVERRIDE=\n" +
		"# DEBUG=\n"
	assert.Equal(t, want, got)
}
