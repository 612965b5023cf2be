package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
)

const (
	// SourceExtension is the file extension DirLoader looks for.
	SourceExtension = ".ns"

	sourceRealm  byte = 0xA0
	prefixSource byte = 0
)

var ErrSourceNotFound = errors.New("unit source not found")

// Source is the text of one unit version.
type Source struct {
	Name    string
	Version string
	Text    string
}

// SourceLoader finds unit sources. An empty version selects the latest
// version the loader knows.
type SourceLoader interface {
	Load(name, version string) (*Source, error)
}

// MapLoader keeps sources in memory. Later additions of a name count as
// newer versions.
type MapLoader struct {
	mu      sync.RWMutex
	sources map[string][]*Source
}

var _ SourceLoader = (*MapLoader)(nil)

func NewMapLoader() *MapLoader {
	return &MapLoader{
		sources: make(map[string][]*Source),
	}
}

func (l *MapLoader) Add(name, version, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[name] = append(l.sources[name], &Source{Name: name, Version: version, Text: text})
}

func (l *MapLoader) Load(name, version string) (*Source, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	versions := l.sources[name]
	if len(versions) == 0 {
		return nil, errors.Wrap(ErrSourceNotFound, name)
	}
	if version == "" {
		return versions[len(versions)-1], nil
	}
	for _, src := range versions {
		if src.Version == version {
			return src, nil
		}
	}
	return nil, errors.Wrapf(ErrSourceNotFound, "%s@%s", name, version)
}

// KVLoader keeps sources in a kvstore, keyed by name and version. The
// latest version is the greatest one by CompareVersions.
type KVLoader struct {
	store kvstore.KVStore
}

var _ SourceLoader = (*KVLoader)(nil)

func NewKVLoader(store kvstore.KVStore) (*KVLoader, error) {
	sourceStore, err := store.WithRealm([]byte{sourceRealm})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open source realm")
	}
	return &KVLoader{store: sourceStore}, nil
}

// Store saves the source of one unit version.
func (l *KVLoader) Store(name, version, text string) error {
	if err := l.store.Set(sourceKey(name, version), []byte(text)); err != nil {
		return errors.Wrapf(err, "failed to store unit %s@%s", name, version)
	}
	return nil
}

func (l *KVLoader) Load(name, version string) (*Source, error) {
	if version == "" {
		return l.latest(name)
	}

	text, err := l.store.Get(sourceKey(name, version))
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, errors.Wrapf(ErrSourceNotFound, "%s@%s", name, version)
		}
		return nil, errors.Wrapf(err, "failed to read unit %s@%s", name, version)
	}
	return &Source{Name: name, Version: version, Text: string(text)}, nil
}

func (l *KVLoader) latest(name string) (*Source, error) {
	prefix := namePrefix(name)

	var latest *Source
	if err := l.store.Iterate(prefix, func(key kvstore.Key, value kvstore.Value) bool {
		version := string(key[len(prefix):])
		if latest == nil || CompareVersions(version, latest.Version) > 0 {
			latest = &Source{Name: name, Version: version, Text: string(value)}
		}
		return true
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to list unit %s", name)
	}

	if latest == nil {
		return nil, errors.Wrap(ErrSourceNotFound, name)
	}
	return latest, nil
}

func namePrefix(name string) []byte {
	ms := marshalutil.New(2 + len(name))
	ms.WriteByte(prefixSource)
	ms.WriteBytes([]byte(name))
	ms.WriteByte(0)
	return ms.Bytes()
}

func sourceKey(name, version string) []byte {
	ms := marshalutil.New(2 + len(name) + len(version))
	ms.WriteBytes(namePrefix(name))
	ms.WriteBytes([]byte(version))
	return ms.Bytes()
}

// DirLoader reads NAME.ns or NAME@VERSION.ns files from a directory.
type DirLoader struct {
	Dir string
}

var _ SourceLoader = (*DirLoader)(nil)

func (l *DirLoader) Load(name, version string) (*Source, error) {
	if version != "" {
		path := filepath.Join(l.Dir, name+"@"+version+SourceExtension)
		if text, err := os.ReadFile(path); err == nil {
			return &Source{Name: name, Version: version, Text: string(text)}, nil
		}
	} else {
		matches, err := filepath.Glob(filepath.Join(l.Dir, name+"@*"+SourceExtension))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list versions of %s", name)
		}
		if len(matches) > 0 {
			versions := make([]string, len(matches))
			for i, path := range matches {
				base := strings.TrimSuffix(filepath.Base(path), SourceExtension)
				versions[i] = strings.TrimPrefix(base, name+"@")
			}
			slices.SortFunc(versions, func(a, b string) bool { return CompareVersions(a, b) < 0 })
			latest := versions[len(versions)-1]
			path := filepath.Join(l.Dir, name+"@"+latest+SourceExtension)
			text, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", path)
			}
			return &Source{Name: name, Version: latest, Text: string(text)}, nil
		}
	}

	path := filepath.Join(l.Dir, name+SourceExtension)
	text, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSourceNotFound, "%s in %s", name, l.Dir)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return &Source{Name: name, Version: version, Text: string(text)}, nil
}
