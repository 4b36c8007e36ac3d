package testlib

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Layout is a throwaway upload/processed tree for one test.
type Layout struct {
	Root          string
	UploadRoot    string
	ProcessedRoot string
	LockDir       string
}

func NewLayout() Layout {
	root := ExpectSuccess(filepath.EvalSymlinks(GinkgoT().TempDir()))

	layout := Layout{
		Root:          root,
		UploadRoot:    filepath.Join(root, "uploads"),
		ProcessedRoot: filepath.Join(root, "processed"),
		LockDir:       filepath.Join(root, "processed", ".locks"),
	}

	ExpectWithOffset(1, os.MkdirAll(layout.UploadRoot, os.ModePerm)).To(Succeed())
	ExpectWithOffset(1, os.MkdirAll(layout.ProcessedRoot, os.ModePerm)).To(Succeed())

	return layout
}

// WriteUpload places a file under the upload root, filename may contain a
// namespace directory.
func (l Layout) WriteUpload(filename string, contents string) string {
	uploadPath := filepath.Join(l.UploadRoot, filepath.FromSlash(filename))
	ExpectWithOffset(1, os.MkdirAll(filepath.Dir(uploadPath), os.ModePerm)).To(Succeed())
	ExpectWithOffset(1, os.WriteFile(uploadPath, []byte(contents), 0o644)).To(Succeed())
	return uploadPath
}

// WriteStems fakes finished tool output in dir.
func WriteStems(dir string, stems ...string) {
	ExpectWithOffset(1, os.MkdirAll(dir, os.ModePerm)).To(Succeed())
	for _, stem := range stems {
		ExpectWithOffset(1, os.WriteFile(filepath.Join(dir, stem), []byte("stem:"+stem), 0o644)).To(Succeed())
	}
}

func ListDir(dir string) []string {
	entries := ExpectSuccess(os.ReadDir(dir))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
