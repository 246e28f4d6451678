// Package localstore persiste la configuración del conector en el directorio
// del usuario (~/.xsist): cert.pfx y config.json, ambos con permisos 0600.
package localstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

const (
	certFile   = "cert.pfx"
	configFile = "config.json"
	fileMode   = 0o600
	dirMode    = 0o700

	// temporal de config.json; viper deduce el formato por la extensión
	configTmpFile = ".config.tmp.json"
)

// Claves de config.json.
const (
	keyPFXPath     = "pfx_path"
	keyPFXPassword = "pfx_password"
	keyCNPJ        = "cnpj"
	keyTpAmb       = "tp_amb"
	keyVersion     = "version"
)

// ErrNoCertificate todavía no se guardó ningún cert.pfx.
var ErrNoCertificate = errors.New("localstore: todavía no hay cert.pfx guardado en el conector")

// Settings contenido de config.json. PFXPassword es secreto: no se loguea.
type Settings struct {
	PFXPath     string
	PFXPassword string
	CNPJ        string
	TpAmb       int
	Version     int
}

// HasPassword indica si hay contraseña guardada.
func (s *Settings) HasPassword() bool { return s.PFXPassword != "" }

// HasCNPJ indica si hay CNPJ guardado.
func (s *Settings) HasCNPJ() bool { return s.CNPJ != "" }

// String no incluye la contraseña.
func (s Settings) String() string {
	return fmt.Sprintf("Settings{pfx_path=%q, cnpj=%q, tp_amb=%d, version=%d, password=%t}",
		s.PFXPath, s.CNPJ, s.TpAmb, s.Version, s.PFXPassword != "")
}

// Store acceso serializado a los archivos del directorio.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New crea el store sobre dir (se crea con 0700 al primer guardado).
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir directorio base.
func (s *Store) Dir() string { return s.dir }

// CertPath ruta de cert.pfx.
func (s *Store) CertPath() string { return filepath.Join(s.dir, certFile) }

func (s *Store) configPath() string { return filepath.Join(s.dir, configFile) }

// HasCertificate indica si existe cert.pfx.
func (s *Store) HasCertificate() bool {
	info, err := os.Stat(s.CertPath())
	return err == nil && !info.IsDir()
}

// Load lee config.json. Si no existe devuelve valores por defecto (tp_amb=1, version=0).
func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(s.configPath())
	v.SetConfigType("json")
	v.SetDefault(keyTpAmb, pkgsefaz.TpAmbProduction)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("localstore: leer %s: %w", configFile, err)
		}
	}
	return &Settings{
		PFXPath:     v.GetString(keyPFXPath),
		PFXPassword: v.GetString(keyPFXPassword),
		CNPJ:        v.GetString(keyCNPJ),
		TpAmb:       v.GetInt(keyTpAmb),
		Version:     v.GetInt(keyVersion),
	}, nil
}

// ReadCertificate devuelve los bytes de cert.pfx (o de pfx_path si apunta a otro archivo).
func (s *Store) ReadCertificate() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.CertPath()
	if st, err := s.load(); err == nil && st.PFXPath != "" {
		path = st.PFXPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCertificate
		}
		return nil, fmt.Errorf("localstore: leer certificado: %w", err)
	}
	return data, nil
}

// SaveCertificate escribe cert.pfx y config.json con la contraseña, CNPJ y
// tp_amb de st. La versión se incrementa respecto a la guardada; el valor de
// st.Version se ignora. Devuelve los settings persistidos.
//
// Orden: config temporal, cert.pfx, rename del config. Si algo falla antes del
// rename, cert.pfx vuelve a su contenido anterior y config.json no cambia.
func (s *Store) SaveCertificate(archive []byte, st Settings) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return nil, fmt.Errorf("localstore: crear directorio: %w", err)
	}
	prev, err := s.load()
	if err != nil {
		return nil, err
	}

	if st.TpAmb == 0 {
		st.TpAmb = pkgsefaz.TpAmbProduction
	}
	st.PFXPath = s.CertPath()
	st.Version = prev.Version + 1

	tmp, err := s.stageConfig(st)
	if err != nil {
		return nil, err
	}

	previous, readErr := os.ReadFile(s.CertPath())
	if err := writeFileAtomic(s.CertPath(), archive); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("localstore: guardar certificado: %w", err)
	}

	if err := os.Rename(tmp, s.configPath()); err != nil {
		_ = os.Remove(tmp)
		s.restoreCertificate(previous, readErr)
		return nil, fmt.Errorf("localstore: escribir %s: %w", configFile, err)
	}
	return &st, nil
}

func (s *Store) restoreCertificate(previous []byte, readErr error) {
	if readErr != nil {
		_ = os.Remove(s.CertPath())
		return
	}
	_ = writeFileAtomic(s.CertPath(), previous)
}

// stageConfig escribe config.json en un temporal del mismo directorio y
// devuelve su ruta.
func (s *Store) stageConfig(st Settings) (string, error) {
	v := viper.New()
	v.SetConfigPermissions(fileMode)
	v.Set(keyPFXPath, st.PFXPath)
	v.Set(keyPFXPassword, st.PFXPassword)
	v.Set(keyCNPJ, st.CNPJ)
	v.Set(keyTpAmb, st.TpAmb)
	v.Set(keyVersion, st.Version)

	tmp := filepath.Join(s.dir, configTmpFile)
	if err := v.WriteConfigAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("localstore: escribir %s: %w", configFile, err)
	}
	if err := os.Chmod(tmp, fileMode); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("localstore: permisos %s: %w", configFile, err)
	}
	return tmp, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pfx-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
