package library

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// Document types accepted on upload.
const (
	TypeBNS          = "bns"
	TypeBNSS         = "bnss"
	TypeBSA          = "bsa"
	TypeConstitution = "constitution"
	TypeIPC          = "ipc"
	TypeCrPC         = "crpc"
	TypeSupremeCourt = "supreme_court"
	TypeHighCourt    = "high_court"
	TypeOther        = "other"
)

// BNSFolder holds the new criminal codes.
const BNSFolder = "bns_data"

var folders = map[string]string{
	TypeBNS:  BNSFolder,
	TypeBNSS: BNSFolder,
	TypeBSA:  BNSFolder,
}

// FolderFor returns the folder below the data directory for a document type.
// Unknown types and everything but the new codes live in the root.
func FolderFor(documentType string) string {
	return folders[strings.ToLower(strings.TrimSpace(documentType))]
}

// CategorizeSource assigns an indexed source path to a document category.
func CategorizeSource(source string) string {
	s := strings.ToLower(source)
	switch {
	case strings.Contains(s, "constitution"):
		return TypeConstitution
	case strings.Contains(s, "bns"):
		return TypeBNS
	case strings.Contains(s, "ipc"), strings.Contains(s, "penal"):
		return TypeIPC
	case strings.Contains(s, "supreme"):
		return TypeSupremeCourt
	case strings.Contains(s, "high"):
		return TypeHighCourt
	default:
		return TypeOther
	}
}

// Library is the PDF corpus below one data directory.
type Library struct {
	root string
}

// New creates the data directory if needed.
func New(root string) (*Library, error) {
	if root == "" {
		return nil, helper.NewError("library", fmt.Errorf("data directory is empty"))
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, helper.NewError("library", err)
	}
	return &Library{root: filepath.Clean(root)}, nil
}

// Root returns the data directory.
func (l *Library) Root() string {
	return l.root
}

// IsPDF reports whether filename has a .pdf extension.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// Save writes r as filename into the folder of documentType and returns the
// saved path and the number of bytes written.
func (l *Library) Save(documentType string, filename string, r io.Reader) (string, int64, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return "", 0, err
	}

	dir := filepath.Join(l.root, FolderFor(documentType))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", 0, helper.NewError("save document", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", 0, helper.NewError("save document", err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, helper.NewError("save document", err)
	}

	return path, n, nil
}

// PDFs lists every PDF below folder, sorted by path. An empty folder means
// the whole data directory.
func (l *Library) PDFs(folder string) ([]string, error) {
	dir := l.dir(folder)

	paths := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && IsPDF(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, helper.NewError("list documents", err)
	}

	return paths, nil
}

// CountPDFs counts every PDF in the data directory.
func (l *Library) CountPDFs() (int, error) {
	paths, err := l.PDFs("")
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

// Find returns the path of the first PDF named filename below folder.
func (l *Library) Find(filename string, folder string) (string, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return "", err
	}

	paths, err := l.PDFs(folder)
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		if filepath.Base(path) == name {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", model.ErrDocumentNotFound, filename)
}

// dir resolves folder below the data directory. Parent references cannot
// leave it.
func (l *Library) dir(folder string) string {
	return filepath.Join(l.root, filepath.Clean("/"+folder))
}

func cleanFilename(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.TrimSpace(filename)))
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("%w: filename is required", model.ErrInvalidRequest)
	}
	if !IsPDF(name) {
		return "", fmt.Errorf("%w: %s", model.ErrUnsupportedFileType, filename)
	}
	return name, nil
}
