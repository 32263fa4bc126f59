package files

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-burden/internal/burden"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("##fileformat=VCFv4.2\n"), 0644))
	return path
}

func TestIsVCF(t *testing.T) {
	assert.True(t, IsVCF("a.vcf"))
	assert.True(t, IsVCF("a.vcf.gz"))
	assert.True(t, IsVCF("a.vcf.bgz"))
	assert.False(t, IsVCF("a.txt"))
	assert.False(t, IsVCF("a.vcf.idx"))
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "S1.vep.vcf"))
	touch(t, filepath.Join(root, "b", "S2.vcf"))
	touch(t, filepath.Join(root, "b", "notes.txt"))

	got, err := Find(root, "vcf", nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Find(root, ".vcf", regexp.MustCompile(`\.vep\.`))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a", "S1.vep.vcf")}, got)

	_, err = Find(filepath.Join(root, "missing"), "vcf", nil)
	assert.ErrorIs(t, err, burden.ErrNotFound)
}

func TestDedup(t *testing.T) {
	unique, dups := Dedup([]string{"/a/S1.vcf", "/b/S2.vcf", "/c/S1.vcf"})
	assert.Equal(t, []string{"/a/S1.vcf", "/b/S2.vcf"}, unique)
	assert.Equal(t, []string{"/c/S1.vcf"}, dups)
}

func TestFindtype(t *testing.T) {
	src := filepath.Join(t.TempDir(), "batch1")
	touch(t, filepath.Join(src, "run1", "S1.vcf"))
	touch(t, filepath.Join(src, "run2", "S1.vcf"))
	touch(t, filepath.Join(src, "run2", "S2.vcf"))
	out := filepath.Join(t.TempDir(), "lists")

	res, err := Findtype(src, out, "vcf", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "batch1.vcf.txt"), res.ListPath)
	assert.Equal(t, filepath.Join(out, "duplicates_batch1.vcf.txt"), res.DuplicatesPath)

	list, err := ReadList(res.ListPath)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(src, "run1", "S1.vcf"), filepath.Join(src, "run2", "S2.vcf")}, list)

	dups, err := ReadList(res.DuplicatesPath)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(src, "run2", "S1.vcf")}, dups)
}

func TestFindtype_NoDuplicates(t *testing.T) {
	src := filepath.Join(t.TempDir(), "batch")
	touch(t, filepath.Join(src, "S1.vcf"))
	out := t.TempDir()

	res, err := Findtype(src, out, "vcf", "S1")
	require.NoError(t, err)
	assert.Empty(t, res.DuplicatesPath)
	assert.NoFileExists(t, filepath.Join(out, "duplicates_batch.vcf.txt"))

	_, err = Findtype(src, out, "vcf", "([")
	assert.Error(t, err)
}

func TestCollectVCFs(t *testing.T) {
	dir := t.TempDir()
	s1 := touch(t, filepath.Join(dir, "S1.vcf"))
	s2 := touch(t, filepath.Join(dir, "sub", "S2.vcf.gz"))
	s3 := touch(t, filepath.Join(dir, "sub", "S3.vcf"))
	touch(t, filepath.Join(dir, "sub", "readme.md"))

	list := filepath.Join(dir, "inputs.list")
	require.NoError(t, os.WriteFile(list, []byte(s3+"\n\n  "+s1+"  \nnot-a-vcf.bam\n"), 0644))

	got, err := CollectVCFs([]string{s1, filepath.Join(dir, "sub"), list})
	require.NoError(t, err)
	assert.Equal(t, []string{s1, s2, s3}, got)
}

func TestCollectVCFs_Missing(t *testing.T) {
	dir := t.TempDir()
	_, err := CollectVCFs([]string{filepath.Join(dir, "nope.vcf")})
	assert.ErrorIs(t, err, burden.ErrNotFound)

	list := filepath.Join(dir, "inputs.txt")
	require.NoError(t, os.WriteFile(list, []byte(filepath.Join(dir, "gone.vcf")+"\n"), 0644))
	_, err = CollectVCFs([]string{list})
	assert.ErrorIs(t, err, burden.ErrNotFound)
}
