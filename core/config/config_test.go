package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := Default()
	assert.Nil(t, cfg.Validate())

	for _, flag := range KnownFlags {
		_, ok := cfg.Flags[flag]
		assert.True(t, ok, "default config missing flag %q", flag)
	}
}

func TestLoad(t *testing.T) {
	cases := map[string]struct {
		contents string
		wantErr  string
		check    func(t *testing.T, cfg *Configuration)
	}{
		"override": {
			contents: "prompt: '$ '\nhistory_limit: 10\n",
			check: func(t *testing.T, cfg *Configuration) {
				assert.Equal(t, "$ ", cfg.Prompt)
				assert.Equal(t, 10, cfg.HistoryLimit)
				assert.Equal(t, Default().RCFile, cfg.RCFile, "unset fields keep defaults")
			},
		},
		"unknown-field": {
			contents: "promt: oops\n",
			wantErr:  "promt",
		},
		"bad-limit": {
			contents: "history_limit: -5\n",
			wantErr:  "history_limit",
		},
		"bad-flag": {
			contents: "flags:\n  verbose: true\n",
			wantErr:  "flags",
		},
		"empty-prompt": {
			contents: "prompt: ''\n",
			wantErr:  "prompt",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			assert.Nil(t, afero.WriteFile(fsys, "/etc/pgsh/config.yaml", []byte(tc.contents), 0600))

			cfg, err := Load(fsys, "/etc/pgsh/config.yaml")
			if tc.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			assert.Nil(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoad_missing(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/nope/config.yaml")
	assert.Nil(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestInitialize(t *testing.T) {
	fsys := afero.NewMemMapFs()
	logs := &bytes.Buffer{}
	logger := log.New(logs, "", 0)
	path := "/home/test/.config/pgsh/config.yaml"

	cfg, err := Initialize(fsys, path, logger)
	assert.Nil(t, err)
	assert.Equal(t, Default(), cfg)

	written, err := afero.ReadFile(fsys, path)
	assert.Nil(t, err)
	assert.Equal(t, defaultConfigData, written)

	// A second run keeps user edits.
	assert.Nil(t, afero.WriteFile(fsys, path, []byte("prompt: '> '\n"), 0600))
	cfg, err = Initialize(fsys, path, logger)
	assert.Nil(t, err)
	assert.Equal(t, "> ", cfg.Prompt)
	assert.Contains(t, logs.String(), "already exists")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, ".pgshrc"), ExpandPath("~/.pgshrc"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/etc/pgshrc", ExpandPath("/etc/pgshrc"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}
