package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/config"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/identity"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAliasCommand(t *testing.T) {
	out, err := execute(t, "alias", "ProjectA", "--owner", "owner1", "--repo", "repoA", "--at", "1700000000000")

	require.NoError(t, err)
	assert.Equal(t, "proj_00jn120n_yw3v28\n", out)
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "ProjectA", "--owner", "owner1", "--repo", "repoA", "--at", "1700000000000")

	require.NoError(t, err)
	assert.Equal(t, "pauth_00eaq1sv\n", out)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "proj_00jn120n_yw3v28", "pauth_00eaq1sv")
	require.NoError(t, err)
	assert.Equal(t, "validated_project_00jn120n\n", out)

	_, err = execute(t, "validate", "project_x", "pauth_00eaq1sv")
	assert.ErrorIs(t, err, errInvalidPair)

	_, err = execute(t, "validate", "only-one")
	assert.Error(t, err)
}

func TestPrintRegistration(t *testing.T) {
	reg := &application.Registration{
		Project: model.Project{Name: "ProjectA"},
		Alias:   identity.Alias("proj_00jn120n_yw3v28"),
		Token:   identity.AuthToken("pauth_00eaq1sv"),
		Webhook: model.WebhookInfo{
			URL:         "https://api.github.com/repos/owner1/repoA/dispatches",
			Method:      "POST",
			Headers:     map[string]string{"X-Project-Auth": "pauth_00eaq1sv"},
			Body:        `{"event_type":"increment"}`,
			Description: "Project webhook.",
		},
	}

	var text bytes.Buffer
	require.NoError(t, printRegistration(&text, reg, false))
	assert.Contains(t, text.String(), "alias: proj_00jn120n_yw3v28")
	assert.Contains(t, text.String(), "X-Project-Auth: pauth_00eaq1sv")
	assert.True(t, strings.HasPrefix(text.String(), "Registered ProjectA"))

	var js bytes.Buffer
	require.NoError(t, printRegistration(&js, reg, true))
	assert.Contains(t, js.String(), `"token": "pauth_00eaq1sv"`)
}

type stubDetector struct {
	mode model.StorageMode
	err  error
}

func (d stubDetector) DetectStorageMode(context.Context) (model.StorageMode, error) {
	return d.mode, d.err
}

func TestApplyDetectedMode(t *testing.T) {
	ctx := context.Background()
	base := func() *config.Config {
		return &config.Config{
			GitHubToken:     "ghp_test",
			RepoOwner:       "owner1",
			RepoName:        "repoA",
			StorageMode:     model.StorageModeDatabase,
			DBType:          config.DBTypeSQLite,
			DBPath:          "test.db",
			RefreshInterval: time.Minute,
			WebhookRate:     1,
			WebhookBurst:    1,
			LogFormat:       "json",
		}
	}

	t.Run("no credentials", func(t *testing.T) {
		cfg := base()
		err := applyDetectedMode(ctx, cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ACTIONSCOUNTER_GITHUB_TOKEN")
		assert.Equal(t, model.StorageModeDatabase, cfg.StorageMode)
	})

	t.Run("detected", func(t *testing.T) {
		cfg := base()
		require.NoError(t, applyDetectedMode(ctx, cfg, stubDetector{mode: model.StorageModeRepositoryCommits}))
		assert.Equal(t, model.StorageModeRepositoryCommits, cfg.StorageMode)
	})

	t.Run("detection fails", func(t *testing.T) {
		err := applyDetectedMode(ctx, base(), stubDetector{err: errors.New("boom")})
		assert.ErrorContains(t, err, "detecting storage mode")
	})
}
