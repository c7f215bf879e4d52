package modloader

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"mcpd/internal/blob"
	"mcpd/internal/mcperrors"
	"mcpd/internal/partitionkey"
)

// Loader resolves (package, module, class, source) to a constructed
// Handler, per spec.md §4.C.
type Loader struct {
	registry    *Registry
	blob        blob.Store
	zipRoot     string
	extractRoot string

	packageLocks sync.Map // packageName -> *sync.Mutex
	plugins      sync.Map // .so path -> *plugin.Plugin
}

// New constructs a Loader. zipRoot is where downloaded archives are staged
// (funct_zip_path); extractRoot is where they are unpacked
// (funct_extract_path).
func New(registry *Registry, blobStore blob.Store, zipRoot, extractRoot string) *Loader {
	return &Loader{
		registry:    registry,
		blob:        blobStore,
		zipRoot:     zipRoot,
		extractRoot: extractRoot,
	}
}

// Load builds a Handler for (packageName, moduleName, className), passing
// it the class's resolved setting map and, if it implements
// PartitionKeySetter, the current request's partition key. source is the
// module record's opaque "source" tag. A statically registered constructor
// is always used first; when none is registered, an empty source fails
// with ModuleUnavailable and a non-empty one triggers the
// download-extract-load path (spec.md §4.C).
func (l *Loader) Load(ctx context.Context, packageName, moduleName, className, source string, setting map[string]any, requestKey partitionkey.Key) (Handler, error) {
	ctor, ok := l.registry.lookup(packageName, moduleName, className)
	if !ok && source != "" {
		var err error
		ctor, err = l.loadFromArchive(ctx, packageName, moduleName, className)
		if err != nil {
			return nil, err
		}
	}
	if ctor == nil {
		return nil, mcperrors.ModuleUnavailable(moduleName)
	}

	handler, err := ctor(newSubsystemLogger(moduleName), setting)
	if err != nil {
		return nil, mcperrors.HandlerConstructionFailed(err, moduleName, className)
	}

	if setter, ok := handler.(PartitionKeySetter); ok {
		setter.SetPartitionKey(requestKey.PartitionKey)
	}
	return handler, nil
}

// loadFromArchive ensures packageName's archive is downloaded and
// extracted, then opens its plugin and looks up className's constructor
// symbol. Extraction is idempotent and safe under concurrent callers for
// the same package (spec.md §4.C).
func (l *Loader) loadFromArchive(ctx context.Context, packageName, moduleName, className string) (Constructor, error) {
	if err := l.ensureExtracted(ctx, packageName, moduleName); err != nil {
		return nil, err
	}

	soPath := filepath.Join(l.extractRoot, moduleName, className+".so")
	p, err := l.openPlugin(soPath)
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindModuleUnavailable, err, fmt.Sprintf("open plugin for %s/%s", moduleName, className))
	}

	sym, err := p.Lookup("New" + className)
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindModuleUnavailable, err, fmt.Sprintf("lookup New%s in %s", className, soPath))
	}

	ctor, ok := sym.(func(Logger, map[string]any) (Handler, error))
	if !ok {
		return nil, mcperrors.ModuleUnavailable(fmt.Sprintf("%s: symbol New%s has unexpected type", moduleName, className))
	}
	return Constructor(ctor), nil
}

func (l *Loader) openPlugin(soPath string) (*plugin.Plugin, error) {
	if cached, ok := l.plugins.Load(soPath); ok {
		return cached.(*plugin.Plugin), nil
	}
	p, err := plugin.Open(soPath)
	if err != nil {
		return nil, err
	}
	actual, _ := l.plugins.LoadOrStore(soPath, p)
	return actual.(*plugin.Plugin), nil
}

func (l *Loader) ensureExtracted(ctx context.Context, packageName, moduleName string) error {
	destDir := filepath.Join(l.extractRoot, moduleName)

	lock := l.lockFor(packageName)
	lock.Lock()
	defer lock.Unlock()

	if dirExists(destDir) {
		return nil
	}

	zipPath := filepath.Join(l.zipRoot, blob.ArchiveKey(packageName))
	data, err := l.blob.Get(ctx, blob.ArchiveKey(packageName))
	if err != nil {
		return mcperrors.Wrap(mcperrors.KindModuleUnavailable, err, fmt.Sprintf("download archive for package %s", packageName))
	}
	if err := os.MkdirAll(l.zipRoot, 0o755); err != nil {
		return mcperrors.Wrap(mcperrors.KindInternal, err, "create zip root")
	}
	if err := os.WriteFile(zipPath, data, 0o644); err != nil {
		return mcperrors.Wrap(mcperrors.KindInternal, err, "stage archive")
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return mcperrors.Wrap(mcperrors.KindInternal, err, "create extract directory")
	}
	if err := extractZip(zipPath, destDir); err != nil {
		return mcperrors.Wrap(mcperrors.KindModuleUnavailable, err, fmt.Sprintf("extract archive for package %s", packageName))
	}
	return nil
}

func (l *Loader) lockFor(packageName string) *sync.Mutex {
	v, _ := l.packageLocks.LoadOrStore(packageName, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// extractZip unpacks zipPath into destDir, rejecting entries that would
// escape destDir ("zip slip").
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	cleanDest := filepath.Clean(destDir)
	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("modloader: illegal file path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
