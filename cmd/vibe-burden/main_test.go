package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-burden/internal/burden"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestRun_Usage(t *testing.T) {
	isolate(t)
	assert.Equal(t, ExitUsage, run([]string{"Findtype", "--bogus"}))
	assert.Equal(t, ExitUsage, run([]string{"Findtype", "extra-arg"}))
	assert.Equal(t, ExitUsage, run([]string{"Findtype"}))
	assert.Equal(t, ExitUsage, run([]string{"Readvcfs"}))
	assert.Equal(t, ExitUsage, run([]string{"nosuchcommand"}))
}

func TestRun_Findtype(t *testing.T) {
	isolate(t)
	src := filepath.Join(t.TempDir(), "batch")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "S1.vcf"), nil, 0644))
	out := t.TempDir()

	assert.Equal(t, ExitSuccess, run([]string{"findtype", "-s", src, "-t", "vcf", "-d", out}))
	assert.FileExists(t, filepath.Join(out, "batch.vcf.txt"))

	assert.Equal(t, ExitError, run([]string{"Findtype", "-s", filepath.Join(src, "missing"), "-t", "vcf", "-d", out}))
}

func TestRun_ReadvcfsMissingInput(t *testing.T) {
	isolate(t)
	dest := filepath.Join(t.TempDir(), "tables")
	code := run([]string{"Readvcfs", "-f", filepath.Join(t.TempDir(), "nope.vcf"), "-d", dest, "--run-id", "r1"})
	assert.Equal(t, ExitError, code)
}

func TestRun_Loaddb(t *testing.T) {
	isolate(t)
	in := t.TempDir()
	vcf := "##fileformat=VCFv4.2\n" +
		"##INFO=<ID=CSQ,Number=.,Type=String,Description=\"Format: IMPACT|SYMBOL|HGNC_ID|MAX_AF\">\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS\n" +
		"1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|TP53|11998|0.002\tGT:AD:DP\t0/1:5,5:10\n"
	path := filepath.Join(in, "S1.vcf")
	require.NoError(t, os.WriteFile(path, []byte(vcf), 0644))

	root := t.TempDir()
	dest := filepath.Join(root, "tables")
	require.Equal(t, ExitSuccess, run([]string{"Readvcfs", "-f", path, "-d", dest, "--run-id", "r1", "-w", "1"}))
	assert.FileExists(t, filepath.Join(root, "gnomad_tbr1.tsv"))

	require.Equal(t, ExitSuccess, run([]string{"loaddb", "-d", dest, "--run-id", "r2"}))
	assert.FileExists(t, filepath.Join(root, "gnomad_tbr2.tsv"))

	assert.Equal(t, ExitError, run([]string{"Loaddb", "-d", dest, "--run-id", "r3", "--phenotype", "Migraine"}))
	assert.Equal(t, ExitError, run([]string{"Loaddb", "-d", dest, "--run-id", "r2"}))
}

func TestConfigSetAndGet(t *testing.T) {
	isolate(t)
	require.Equal(t, ExitSuccess, run([]string{"config", "set", "sample.prefixes", "TSHC_,E"}))
	assert.FileExists(t, filepath.Join(os.Getenv("HOME"), configName+".yaml"))

	viper.Reset()
	require.NoError(t, initConfig())
	assert.Equal(t, []string{"TSHC_", "E"}, viper.GetStringSlice("sample.prefixes"))
	assert.Equal(t, ExitError, run([]string{"config", "set", "no.such.key", "1"}))
}

func TestParseConfigValue(t *testing.T) {
	assert.Equal(t, true, parseConfigValue("ledger.enabled", "yes"))
	assert.Equal(t, 4, parseConfigValue("duckdb.threads", "4"))
	assert.Equal(t, "8GB", parseConfigValue("duckdb.memory_limit", "8GB"))
	assert.Equal(t, []string{"A", "B"}, parseConfigValue("sample.prefixes", "A, B,"))
}

func TestHint(t *testing.T) {
	incomplete := fmt.Errorf("sample A: %w", fmt.Errorf("sample table /t/A has no globals.yaml: %w", burden.ErrIncomplete))
	assert.Contains(t, hint(incomplete), "--overwrite")
	assert.NotContains(t, hint(incomplete), "path is correct")

	assert.Equal(t, "Check that the path is correct", hint(fmt.Errorf("vcf x: %w", burden.ErrNotFound)))
	assert.Contains(t, hint(&burden.NoMatchError{Pattern: "X"}), "--phenotype")
	assert.Empty(t, hint(fmt.Errorf("boom")))
}

func TestRun_ReadvcfsIncompleteSample(t *testing.T) {
	isolate(t)
	in := t.TempDir()
	vcf := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS\n" +
		"1\t100\t.\tA\tT\t.\tPASS\tCSQ=HIGH|TP53|11998|0.002\tGT:AD:DP\t0/1:5,5:10\n"
	path := filepath.Join(in, "S1.vcf")
	require.NoError(t, os.WriteFile(path, []byte(vcf), 0644))

	dest := filepath.Join(t.TempDir(), "tables")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "S1"), 0755))

	assert.Equal(t, ExitError, run([]string{"Readvcfs", "-f", path, "-d", dest, "--run-id", "r1"}))
	assert.Equal(t, ExitSuccess, run([]string{"Readvcfs", "-f", path, "-d", dest, "--run-id", "r2", "-r"}))
}
