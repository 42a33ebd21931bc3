package helpers

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-workshop-sync/internal/models"

	"github.com/zeebo/blake3"
)

func TestConvertToSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Empty string", "", ""},
		{"Simple string", "Simple Test", "simple_test"},
		{"With colon", "Test: Colon", "test-colon"},
		{"With numbers", "Mod V1.5", "mod_v1.5"},
		{"Mixed case", "MixedCase Slug", "mixedcase_slug"},
		{"Invalid characters", "File*Name?Is\"Bad!", "filenameisbad"},
		{"Repeated dashes", "double--dash", "double-dash"},
		{"Repeated underscores", "double__underscore", "double_underscore"},
		{"Mixed repeated separators", "mixed-_-separator--test", "mixed-separator-test"},
		{"Leading/trailing spaces (handled by Trim)", "  Leading Trailing  ", "leading_trailing"},
		{"Leading/trailing separators", "-_Leading Trailing_-_", "leading_trailing"},
		{"Workshop title", "Drill Rig: Mk II", "drill_rig-mk_ii"},
		{"Already valid", "valid-slug_1.0", "valid-slug_1.0"},
		{"All invalid", "!@#$%^&*()+", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertToSlug(tt.input)
			if got != tt.want {
				t.Errorf("ConvertToSlug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBytesToSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint64
		want  string
	}{
		{"Zero bytes", 0, "0B"},
		{"Bytes", 500, "500.00B"},
		{"Kilobytes", 1024, "1.00KB"},
		{"Kilobytes fractional", 1536, "1.50KB"},
		{"Megabytes", 1024 * 1024, "1.00MB"},
		{"Gigabytes", 1024 * 1024 * 1024, "1.00GB"},
		{"Terabytes", 1024 * 1024 * 1024 * 1024, "1.00TB"},
		{"Large Terabytes", 1536 * 1024 * 1024 * 1024, "1.50TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BytesToSize(tt.bytes)
			if got != tt.want {
				t.Errorf("BytesToSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestCheckHash(t *testing.T) {
	tempDir := t.TempDir()

	testContent := []byte("this is test content for hashing")
	sum := blake3.Sum256(testContent)
	expectedBlake3 := strings.ToUpper(hex.EncodeToString(sum[:]))
	// echo -n "this is test content for hashing" | sha256sum
	expectedSHA256 := "6b5b16aa54c006d03ff82189ce91a586365a9ad1cb67ca79c4d2c943b483e78a"

	testFilePath := filepath.Join(tempDir, "test_hash_file.txt")
	if err := os.WriteFile(testFilePath, testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name       string
		filepath   string
		hashes     models.Hashes
		wantResult bool
	}{
		{"No file exists", filepath.Join(tempDir, "nonexistent_file.txt"), models.Hashes{BLAKE3: expectedBlake3}, false},
		{"BLAKE3 match", testFilePath, models.Hashes{BLAKE3: expectedBlake3}, true},
		{"BLAKE3 match (lowercase api)", testFilePath, models.Hashes{BLAKE3: strings.ToLower(expectedBlake3)}, true},
		{"SHA256 match (uppercase api)", testFilePath, models.Hashes{SHA256: strings.ToUpper(expectedSHA256)}, true},
		{"One mismatch, one match", testFilePath, models.Hashes{BLAKE3: "incorrecthash", SHA256: expectedSHA256}, true},
		{"All hashes mismatch", testFilePath, models.Hashes{BLAKE3: "incorrect1", SHA256: "incorrect2"}, false},
		{"No hashes provided", testFilePath, models.Hashes{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotResult := CheckHash(tt.filepath, tt.hashes)
			if gotResult != tt.wantResult {
				t.Errorf("CheckHash(%q, %+v) = %v, want %v", tt.filepath, tt.hashes, gotResult, tt.wantResult)
			}
		})
	}
}

func TestCheckAndMakeDir(t *testing.T) {
	baseTempDir := t.TempDir()

	tests := []struct {
		name       string
		dirToMake  string // Relative to baseTempDir
		wantResult bool
		wantIsDir  bool
	}{
		{"Create simple directory", "new_dir", true, true},
		{"Create nested directory", filepath.Join("nested", "dir", "to", "create"), true, true},
		{"Attempt to create directory that is a file", "existing_file.txt", false, false},
		{"Directory already exists", "already_exists", true, true},
	}

	if err := os.Mkdir(filepath.Join(baseTempDir, "already_exists"), 0755); err != nil {
		t.Fatalf("Failed to pre-create directory: %v", err)
	}
	f, err := os.Create(filepath.Join(baseTempDir, "existing_file.txt"))
	if err != nil {
		t.Fatalf("Failed to pre-create file: %v", err)
	}
	f.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fullPath := filepath.Join(baseTempDir, tt.dirToMake)
			if got := CheckAndMakeDir(fullPath); got != tt.wantResult {
				t.Errorf("CheckAndMakeDir(%q) = %v, want %v", fullPath, got, tt.wantResult)
			}
			if got := IsDir(fullPath); got != tt.wantIsDir {
				t.Errorf("IsDir(%q) = %v, want %v", fullPath, got, tt.wantIsDir)
			}
		})
	}
}
