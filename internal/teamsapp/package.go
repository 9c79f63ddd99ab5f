package teamsapp

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Icon filenames the package must carry.
const (
	ColorIcon   = "color_icon.png"
	OutlineIcon = "outline_icon.png"
)

// minimalPNG is a 1x1 transparent PNG used when no real icon exists.
var minimalPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0x0f, 0x00, 0x00,
	0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45,
	0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Packager builds the uploadable app zip from a source directory holding
// manifest.json and the icons.
type Packager struct {
	dir    string
	logger *slog.Logger
}

// NewPackager creates a Packager rooted at dir.
func NewPackager(dir string, logger *slog.Logger) *Packager {
	return &Packager{dir: dir, logger: logger}
}

// Build validates the manifest, ensures icons exist (writing placeholders
// when missing), and writes the zip to outPath. An existing package is
// backed up rather than overwritten.
func (p *Packager) Build(outPath string) (*Manifest, error) {
	manifest, err := LoadManifest(filepath.Join(p.dir, "manifest.json"))
	if err != nil {
		return nil, err
	}

	icons := []string{ColorIcon, OutlineIcon}
	for _, icon := range icons {
		path := filepath.Join(p.dir, icon)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		p.logger.Warn("icon missing, writing placeholder", "icon", icon)
		if err := os.WriteFile(path, minimalPNG, 0o644); err != nil {
			return nil, fmt.Errorf("cannot write placeholder icon %s: %w", icon, err)
		}
	}

	if err := p.backupExisting(outPath); err != nil {
		return nil, err
	}

	if err := p.writeZip(outPath, append([]string{"manifest.json"}, icons...)); err != nil {
		return nil, err
	}

	if err := ValidatePackage(outPath); err != nil {
		return nil, err
	}

	p.logger.Info("app package created",
		"path", outPath,
		"app_id", manifest.ID,
		"name", manifest.Name.Short,
		"version", manifest.Version,
	)
	return manifest, nil
}

func (p *Packager) backupExisting(outPath string) error {
	info, err := os.Stat(outPath)
	if err != nil {
		return nil
	}
	backup := fmt.Sprintf("%s.backup.%d.zip", trimZip(outPath), info.ModTime().Unix())
	if err := os.Rename(outPath, backup); err != nil {
		return fmt.Errorf("cannot back up existing package: %w", err)
	}
	p.logger.Info("existing package backed up", "path", backup)
	return nil
}

func (p *Packager) writeZip(outPath string, files []string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("cannot create package %s: %w", outPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, name := range files {
		src, err := os.Open(filepath.Join(p.dir, name))
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", name, err)
		}
		// Entries live at the zip root regardless of source directory.
		w, err := zw.Create(name)
		if err != nil {
			src.Close()
			return err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return fmt.Errorf("cannot add %s to package: %w", name, err)
		}
		src.Close()
	}
	return zw.Close()
}

// ValidatePackage checks the zip carries everything Teams requires.
func ValidatePackage(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("cannot open package %s: %w", path, err)
	}
	defer zr.Close()

	present := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		present[f.Name] = true
	}
	for _, required := range []string{"manifest.json", ColorIcon, OutlineIcon} {
		if !present[required] {
			return fmt.Errorf("package missing required file: %s", required)
		}
	}
	return nil
}

func trimZip(path string) string {
	if filepath.Ext(path) == ".zip" {
		return path[:len(path)-4]
	}
	return path
}
