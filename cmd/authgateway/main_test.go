package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDomains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authgateway.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  domain: corp.example
apps:
  - name: Wiki
    upstream:
      host: 10.0.0.5:3000
  - name: CI
    upstream:
      host: 10.0.0.6:8080
  - name: Grafana
    audit:
      host: grafana.internal
`), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"list-domains", "--config", path})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "corp.example\nci.corp.example\nwiki.corp.example\n", out.String())
}

func TestListDomainsMissingConfig(t *testing.T) {
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"list-domains", "--config", filepath.Join(t.TempDir(), "absent.yml")})
	assert.Error(t, rootCmd.Execute())
}
