// Package files discovers input files on disk.
package files

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/inodb/vibe-burden/internal/burden"
)

// vcfSuffixes are the file name endings accepted as VCF input.
var vcfSuffixes = []string{".vcf", ".vcf.gz", ".vcf.bgz"}

// IsVCF reports whether name looks like a VCF file.
func IsVCF(name string) bool {
	for _, s := range vcfSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Find walks root and returns every regular file whose name ends in "."+ext,
// in lexical order. When include is non-nil only paths it matches are kept.
func Find(root, ext string, include *regexp.Regexp) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("source %s: %w", root, burden.ErrNotFound)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	suffix := "." + strings.TrimPrefix(ext, ".")
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		if include != nil && !include.MatchString(path) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

// Dedup splits paths into those with a base name not seen before and the
// later ones that repeat a base name.
func Dedup(paths []string) (unique, duplicates []string) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		if seen[base] {
			duplicates = append(duplicates, p)
			continue
		}
		seen[base] = true
		unique = append(unique, p)
	}
	return unique, duplicates
}

// WriteList writes one path per line to path.
func WriteList(path string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write list: %w", err)
	}
	return nil
}

// ReadList reads a list file with one path per line. Blank lines are skipped.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list file %s: %w", path, burden.ErrNotFound)
		}
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list file: %w", err)
	}
	return out, nil
}

// CollectVCFs expands inputs into VCF paths. Each input is a VCF file, a
// directory whose top-level VCF files are taken in name order, or a list file
// naming one path per line, of which only VCF paths are kept. Every VCF path
// must exist. Repeated paths are kept once, at their first position.
func CollectVCFs(inputs []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("vcf %s: %w", p, burden.ErrNotFound)
			}
			return fmt.Errorf("stat vcf: %w", err)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
		return nil
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("input %s: %w", in, burden.ErrNotFound)
			}
			return nil, fmt.Errorf("stat input: %w", err)
		}

		switch {
		case info.IsDir():
			entries, err := os.ReadDir(in)
			if err != nil {
				return nil, fmt.Errorf("read input directory: %w", err)
			}
			for _, e := range entries {
				if !e.IsDir() && IsVCF(e.Name()) {
					if err := add(filepath.Join(in, e.Name())); err != nil {
						return nil, err
					}
				}
			}
		case IsVCF(in):
			if err := add(in); err != nil {
				return nil, err
			}
		default:
			list, err := ReadList(in)
			if err != nil {
				return nil, err
			}
			for _, p := range list {
				if !IsVCF(p) {
					continue
				}
				if err := add(p); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// FindResult describes the lists written by Findtype.
type FindResult struct {
	ListPath       string
	DuplicatesPath string // empty when no duplicates were found
	Unique         []string
	Duplicates     []string
}

// Findtype finds files of type ext under source and writes the unique paths
// to <dir>/<source-base>.<ext>.txt. Paths repeating an earlier base name go
// to <dir>/duplicates_<source-base>.<ext>.txt. An empty regex keeps all.
func Findtype(source, dir, ext, regex string) (*FindResult, error) {
	var include *regexp.Regexp
	if regex != "" {
		re, err := regexp.Compile(regex)
		if err != nil {
			return nil, fmt.Errorf("compile regex: %w", err)
		}
		include = re
	}

	found, err := Find(source, ext, include)
	if err != nil {
		return nil, err
	}
	sort.Strings(found)

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("%s.%s.txt", filepath.Base(filepath.Clean(source)), ext)
	res := &FindResult{ListPath: filepath.Join(dir, name)}
	res.Unique, res.Duplicates = Dedup(found)

	if err := WriteList(res.ListPath, res.Unique); err != nil {
		return nil, err
	}
	if len(res.Duplicates) > 0 {
		res.DuplicatesPath = filepath.Join(dir, "duplicates_"+name)
		if err := WriteList(res.DuplicatesPath, res.Duplicates); err != nil {
			return nil, err
		}
	}
	return res, nil
}
