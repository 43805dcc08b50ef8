package password

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Blacklist struct {
	mu   sync.RWMutex
	data map[string]struct{}
}

// LoadBlacklist lee un archivo con un password por línea. Path vacío devuelve
// un blacklist vacío.
func LoadBlacklist(path string) (*Blacklist, error) {
	if strings.TrimSpace(path) == "" {
		return NewBlacklist(), nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBlacklist(f)
}

// ReadBlacklist parsea líneas desde r; ignora vacías y comentarios (#).
func ReadBlacklist(r io.Reader) (*Blacklist, error) {
	bl := NewBlacklist()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(strings.ToLower(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			bl.data[s] = struct{}{}
		}
	}
	return bl, sc.Err()
}

// NewBlacklist crea un blacklist con las entradas dadas.
func NewBlacklist(entries ...string) *Blacklist {
	bl := &Blacklist{data: map[string]struct{}{}}
	for _, e := range entries {
		bl.data[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return bl
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(pwd))
	b.mu.RLock()
	_, ok := b.data[p]
	b.mu.RUnlock()
	return ok
}
