package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/zhpack/internal/archive"
	"github.com/shinji-kodama/zhpack/internal/model"
)

const fixedMillis = 1700000000000

// execute runs the root command with args and returns its output streams
// and exit code.
func execute(t *testing.T, args ...string) (string, string, model.ExitCode) {
	t.Helper()

	prev := now
	now = func() time.Time { return time.UnixMilli(fixedMillis) }
	t.Cleanup(func() { now = prev })

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	code := Run(cmd)
	return stdout.String(), stderr.String(), code
}

// newProject creates a project root holding a small translation directory.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"汉化/text_zh/tags_items.txt": "tagRelicA123=Sword of Testing\ntagCompB456Name=Iron Helm\n",
		"汉化/text_zh/tags_ui.txt":    "tagMenuOK=确定\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func readArchive(t *testing.T, archivePath string) map[string]string {
	t.Helper()
	out := t.TempDir()
	require.NoError(t, archive.NewOS().Extract(archivePath, out, archive.Options{}))

	files := make(map[string]string)
	require.NoError(t, filepath.Walk(out, func(p string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(out, p)
			require.NoError(t, err)
			data, err := os.ReadFile(p)
			require.NoError(t, err)
			files[filepath.ToSlash(rel)] = string(data)
		}
		return nil
	}))
	return files
}

func TestArchiveName(t *testing.T) {
	prev := now
	now = func() time.Time { return time.UnixMilli(fixedMillis) }
	t.Cleanup(func() { now = prev })

	assert.Equal(t, "ZH_1700000000000.zip", archiveName("ZH"))
	assert.Equal(t, "ZH_BEAUTIFY_1700000000000.zip", archiveName("ZH_BEAUTIFY"))
}

func TestPack(t *testing.T) {
	root := newProject(t)
	out := filepath.Join(t.TempDir(), "target")

	stdout, stderr, code := execute(t, "pack", "--root", root, "--out", out)
	require.Equal(t, model.ExitSuccess, code, stderr)

	archivePath := filepath.Join(out, "ZH_1700000000000.zip")
	assert.Contains(t, stdout, "Created "+archivePath+" (2 entries)")
	assert.Equal(t, map[string]string{
		"汉化/text_zh/tags_items.txt": "tagRelicA123=Sword of Testing\ntagCompB456Name=Iron Helm\n",
		"汉化/text_zh/tags_ui.txt":    "tagMenuOK=确定\n",
	}, readArchive(t, archivePath))
}

func TestPack_FlatAndBaseDirJSON(t *testing.T) {
	root := newProject(t)
	out := t.TempDir()

	stdout, stderr, code := execute(t, "pack", "--root", root, "--out", out, "--flat", "--base-dir", "mods/zh", "--json")
	require.Equal(t, model.ExitSuccess, code, stderr)

	var result packResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, 2, result.Entries)

	files := readArchive(t, result.Archive)
	assert.Contains(t, files, "mods/zh/text_zh/tags_items.txt")
	assert.Contains(t, files, "mods/zh/text_zh/tags_ui.txt")
}

func TestPack_FindsRootFromSubdirectory(t *testing.T) {
	root := newProject(t)
	out := t.TempDir()
	chdir(t, filepath.Join(root, "汉化", "text_zh"))

	_, stderr, code := execute(t, "pack", "--out", out)
	require.Equal(t, model.ExitSuccess, code, stderr)

	_, err := os.Stat(filepath.Join(out, "ZH_1700000000000.zip"))
	assert.NoError(t, err)
}

func TestPack_MissingTranslationDir(t *testing.T) {
	emptyRoot := t.TempDir()

	_, stderr, code := execute(t, "pack", "--root", emptyRoot, "--out", t.TempDir())
	assert.Equal(t, model.ExitPrecondition, code)
	assert.Contains(t, stderr, "precondition")

	chdir(t, emptyRoot)
	_, _, code = execute(t, "pack")
	assert.Equal(t, model.ExitPrecondition, code, "root discovery must fail without a translation directory")
}

func TestPack_InvalidConfig(t *testing.T) {
	root := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "zhpack.yaml"), []byte("charset: klingon\n"), 0o644))

	_, stderr, code := execute(t, "pack", "--root", root, "--out", t.TempDir(), "--json")
	assert.Equal(t, model.ExitInvalidConfig, code)

	var decoded map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(stderr), &decoded))
	assert.Contains(t, decoded["error"]["message"], "charset")
}

func TestPack_ConfigFileSettings(t *testing.T) {
	root := newProject(t)
	cfgPath := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`archivePrefix = "GD_ZH"`), 0o644))
	out := t.TempDir()

	_, stderr, code := execute(t, "pack", "--root", root, "--config", cfgPath, "--out", out)
	require.Equal(t, model.ExitSuccess, code, stderr)

	_, err := os.Stat(filepath.Join(out, "GD_ZH_1700000000000.zip"))
	assert.NoError(t, err)
}

func TestBeautify(t *testing.T) {
	root := newProject(t)
	out := t.TempDir()

	stdout, stderr, code := execute(t, "beautify", "--root", root, "--out", out, "--json")
	require.Equal(t, model.ExitSuccess, code, stderr)

	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, filepath.Join(out, "ZH_BEAUTIFY_1700000000000.zip"), report.Archive)
	assert.Equal(t, 1, report.FilesMatched)
	assert.Equal(t, 2, report.LinesChanged)

	assert.Equal(t, map[string]string{
		"汉化/text_zh/tags_items.txt": "tagRelicA123=[A123]Sword of Testing\ntagCompB456Name=[B456]Iron Helm",
		"汉化/text_zh/tags_ui.txt":    "tagMenuOK=确定\n",
	}, readArchive(t, report.Archive))

	original, err := os.ReadFile(filepath.Join(root, "汉化", "text_zh", "tags_items.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tagRelicA123=Sword of Testing\ntagCompB456Name=Iron Helm\n", string(original))
}

func TestBeautify_Text(t *testing.T) {
	root := newProject(t)

	stdout, stderr, code := execute(t, "beautify", "--root", root, "--out", t.TempDir())
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Item files: 1 matched, 1 rewritten, 2 lines changed")
}

func TestBeautify_SkippedFiles(t *testing.T) {
	root := newProject(t)
	bad := filepath.Join(root, "汉化", "text_zh", "bad_items.txt")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe, '\n'}, 0o644))

	out := t.TempDir()
	stdout, stderr, code := execute(t, "beautify", "--root", root, "--out", out)
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Skipped text_zh/bad_items.txt (io-failure)")
	assert.Contains(t, stdout, "Warning: 1 item files were skipped")

	strictOut := t.TempDir()
	stdout, stderr, code = execute(t, "beautify", "--root", root, "--out", strictOut, "--strict")
	assert.Equal(t, model.ExitIOFailure, code)
	assert.Contains(t, stderr, "1 item files were skipped")
	assert.Contains(t, stdout, "Created "+filepath.Join(strictOut, "ZH_BEAUTIFY_1700000000000.zip"))

	files := readArchive(t, filepath.Join(strictOut, "ZH_BEAUTIFY_1700000000000.zip"))
	assert.Equal(t, "tagRelicA123=[A123]Sword of Testing\ntagCompB456Name=[B456]Iron Helm", files["汉化/text_zh/tags_items.txt"],
		"the archive is written before the strict exit")
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	items := filepath.Join(dir, "tags_items.txt")
	require.NoError(t, os.WriteFile(items, []byte("tagRelicA123=Sword\r\nplain=line\r\n"), 0o644))

	stdout, stderr, code := execute(t, "rewrite", items)
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Equal(t, "Item files: 1 matched, 1 rewritten, 1 lines changed\n", stdout)

	data, err := os.ReadFile(items)
	require.NoError(t, err)
	assert.Equal(t, "tagRelicA123=[A123]Sword\nplain=line", string(data))
}

func TestRewrite_MissingFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	items := filepath.Join(dir, "tags_items.txt")
	require.NoError(t, os.WriteFile(items, []byte("tagCompB456Name=Iron Helm\n"), 0o644))
	missing := filepath.Join(dir, "gone_items.txt")

	stdout, stderr, code := execute(t, "rewrite", "--json", items, missing)
	assert.Equal(t, model.ExitMissingSource, code)
	assert.Contains(t, stderr, "1 item files were skipped")

	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Failed())
	assert.Equal(t, 2, report.FilesMatched)
	assert.Equal(t, []string{items}, report.FilesRewritten)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, missing, report.Failures[0].Path)
	assert.Equal(t, model.KindMissingSource, report.Failures[0].Kind)

	data, err := os.ReadFile(items)
	require.NoError(t, err)
	assert.Equal(t, "tagCompB456Name=[B456]Iron Helm", string(data))
}

func TestExtractAndList(t *testing.T) {
	root := newProject(t)
	out := t.TempDir()
	_, stderr, code := execute(t, "pack", "--root", root, "--out", out)
	require.Equal(t, model.ExitSuccess, code, stderr)
	archivePath := filepath.Join(out, "ZH_1700000000000.zip")

	dest := filepath.Join(t.TempDir(), "restored")
	stdout, stderr, code := execute(t, "extract", archivePath, dest, "--root", root)
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Extracted 2 entries into "+dest)

	data, err := os.ReadFile(filepath.Join(dest, "汉化", "text_zh", "tags_ui.txt"))
	require.NoError(t, err)
	assert.Equal(t, "tagMenuOK=确定\n", string(data))

	stdout, stderr, code = execute(t, "list", archivePath, "--charset", "utf-8")
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "汉化/text_zh/tags_items.txt")
	assert.Contains(t, stdout, "汉化/text_zh/tags_ui.txt")

	stdout, stderr, code = execute(t, "list", archivePath, "--charset", "utf-8", "--json")
	require.Equal(t, model.ExitSuccess, code, stderr)
	var listed struct {
		Entries []model.ArchiveEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &listed))
	require.Len(t, listed.Entries, 2)
	assert.Equal(t, "汉化/text_zh/tags_items.txt", listed.Entries[0].Name)
}

func TestList_MissingArchive(t *testing.T) {
	_, stderr, code := execute(t, "list", filepath.Join(t.TempDir(), "nope.zip"), "--charset", "utf-8")
	assert.Equal(t, model.ExitIOFailure, code)
	assert.Contains(t, stderr, "nope.zip")
}

func TestExtract_BadCharset(t *testing.T) {
	_, _, code := execute(t, "extract", "a.zip", t.TempDir(), "--charset", "klingon")
	assert.Equal(t, model.ExitPrecondition, code)
}

func TestRules(t *testing.T) {
	chdir(t, t.TempDir())

	stdout, stderr, code := execute(t, "rules")
	require.Equal(t, model.ExitSuccess, code, stderr)
	for _, prefix := range []string{"tagComp", "tagGDX1Comp", "tagRelic", "tagGDX1Relic", "tagGDX2Relic"} {
		assert.Contains(t, stdout, prefix)
	}

	stdout, stderr, code = execute(t, "rules", "tagRelicA123=Sword of Testing", "plain=line")
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Equal(t, "tagRelicA123=[A123]Sword of Testing\nplain=line\n", stdout)

	stdout, stderr, code = execute(t, "rules", "--json", "tagGDX1CompB456Name=Iron Helm")
	require.Equal(t, model.ExitSuccess, code, stderr)
	var decoded struct {
		Previews []rulePreview `json:"previews"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Equal(t, []rulePreview{{
		Line:    "tagGDX1CompB456Name=Iron Helm",
		Result:  "tagGDX1CompB456Name=[B456]Iron Helm",
		Changed: true,
		Rule:    "tagGDX1Comp",
	}}, decoded.Previews)
}

func TestRules_CustomRulesFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zhpack.jsonc"), []byte(`{
  // only tag skills
  "rules": [{"prefix": "tagSkill", "pattern": "^(tagSkill(\\w\\d{3})=)(.+)$", "replace": "${1}[${2}]${3}"}]
}`), 0o644))
	chdir(t, dir)

	stdout, stderr, code := execute(t, "rules", "tagSkillS001=Fireball", "tagRelicA123=Sword")
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Equal(t, "tagSkillS001=[S001]Fireball\ntagRelicA123=Sword\n", stdout)
}
