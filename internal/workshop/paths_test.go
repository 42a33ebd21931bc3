package workshop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-workshop-sync/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasLogEntry(hook *test.Hook, level logrus.Level, substr string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestResolvePaths_AbsolutePathUnchanged(t *testing.T) {
	profile := testProfile(t)
	outside := t.TempDir()
	mkdirs(t, outside, "Standalone")
	// Same name under the default directory must not be consulted.
	mkdirs(t, profile.ItemPath(models.Mod), "Standalone")

	abs := filepath.Join(outside, "Standalone")
	got := ResolvePaths(models.Mod.Spec(), profile, []string{abs})
	assert.Equal(t, []string{abs}, got)
}

func TestResolvePaths_CurrentAndParentDirectory(t *testing.T) {
	profile := testProfile(t)
	root := t.TempDir()
	mkdirs(t, root, "Shield")
	chdir(t, filepath.Join(root, "Shield"))
	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, []string{cwd}, ResolvePaths(models.Mod.Spec(), profile, []string{"."}))
	assert.Equal(t, []string{filepath.Dir(cwd)}, ResolvePaths(models.Mod.Spec(), profile, []string{".."}))
	assert.Equal(t, []string{cwd}, ResolvePaths(models.Mod.Spec(), profile, []string{"./", "../Shield"}))
}

func TestResolvePaths_RelativeRewrittenToDefaultDir(t *testing.T) {
	profile := testProfile(t)
	chdir(t, t.TempDir())
	mkdirs(t, profile.ItemPath(models.Blueprint), "Miner")

	got := ResolvePaths(models.Blueprint.Spec(), profile, []string{"Miner"})
	assert.Equal(t, []string{filepath.Join(profile.ItemPath(models.Blueprint), "Miner")}, got)
}

func TestResolvePaths_GlobFiltersHiddenAndDownloaded(t *testing.T) {
	profile := testProfile(t)
	chdir(t, t.TempDir())
	base := profile.ItemPath(models.Mod)
	mkdirs(t, base, "ShipA", "ShipB", ".vs", models.DownloadPrefix+"123_ship", "Other")
	require.NoError(t, os.WriteFile(filepath.Join(base, "ShipFile"), []byte("x"), 0644))

	got := ResolvePaths(models.Mod.Spec(), profile, []string{"Ship*"})
	assert.Equal(t, []string{filepath.Join(base, "ShipA"), filepath.Join(base, "ShipB")}, got)

	all := ResolvePaths(models.Mod.Spec(), profile, []string{"*"})
	for _, p := range all {
		leaf := filepath.Base(p)
		assert.False(t, strings.HasPrefix(leaf, "."), "hidden dir returned: %s", p)
		assert.False(t, strings.HasPrefix(leaf, models.DownloadPrefix), "downloaded dir returned: %s", p)
	}
	assert.Len(t, all, 3)

	// Even an explicit path to a downloaded directory is dropped.
	got = ResolvePaths(models.Mod.Spec(), profile, []string{filepath.Join(base, models.DownloadPrefix+"123_ship")})
	assert.Empty(t, got)
}

func TestResolvePaths_MissingFragmentIsSkipped(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	profile := testProfile(t)
	cwd := t.TempDir()
	chdir(t, cwd)
	mkdirs(t, cwd, "ModA")

	got := ResolvePaths(models.Mod.Spec(), profile, []string{"./ModA", "./ModB"})

	wantA, err := filepath.Abs("ModA")
	require.NoError(t, err)
	assert.Equal(t, []string{wantA}, got)
	assert.True(t, hasLogEntry(hook, logrus.WarnLevel, "Directory not found, skipping"))
	assert.True(t, hasLogEntry(hook, logrus.WarnLevel, "ModB"))
}

func TestResolvePaths_DeduplicatesAndKeepsOrder(t *testing.T) {
	profile := testProfile(t)
	chdir(t, t.TempDir())
	base := profile.ItemPath(models.World)
	mkdirs(t, base, "Alpha", "Beta")

	got := ResolvePaths(models.World.Spec(), profile, []string{"Beta", "*", "Alpha"})
	assert.Equal(t, []string{filepath.Join(base, "Beta"), filepath.Join(base, "Alpha")}, got)
}

func TestResolvePaths_LiteralNameWithPatternCharacters(t *testing.T) {
	profile := testProfile(t)
	chdir(t, t.TempDir())
	base := profile.ItemPath(models.Scenario)
	mkdirs(t, base, "Arena [v2]")

	got := ResolvePaths(models.Scenario.Spec(), profile, []string{"Arena [v2]"})
	assert.Equal(t, []string{filepath.Join(base, "Arena [v2]")}, got)
}

func TestResolvePaths_EmptyInput(t *testing.T) {
	profile := testProfile(t)
	assert.Empty(t, ResolvePaths(models.Mod.Spec(), profile, nil))
	assert.Empty(t, ResolvePaths(models.Mod.Spec(), profile, []string{""}))
}
