package services

import (
	"fmt"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

var allowedProofExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".heic": true,
}

// ProofStore saves proof-of-completion images under <root>/proofs and
// serves them back as /uploads/proofs/<name>.
type ProofStore struct {
	root    string
	maxSize int64
}

func NewProofStore(root string, maxSize int64) *ProofStore {
	return &ProofStore{root: root, maxSize: maxSize}
}

// Save validates and writes the file, returning its public path.
func (p *ProofStore) Save(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedProofExt[ext] {
		return "", validation("Invalid file type. Only images are allowed")
	}
	if ct := file.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", validation("Invalid file type. Only images are allowed")
	}
	if file.Size > p.maxSize {
		return "", validation(fmt.Sprintf("Image must be under %dMB", p.maxSize/(1024*1024)))
	}

	dir := filepath.Join(p.root, "proofs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create proofs directory: %w", err)
	}

	name := fmt.Sprintf("proofImage-%s%s", uuid.New().String(), ext)
	if err := fasthttp.SaveMultipartFile(file, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("save proof image: %w", err)
	}
	return path.Join("/uploads", "proofs", name), nil
}

// Remove deletes a file previously returned by Save.
func (p *ProofStore) Remove(publicPath string) {
	name := path.Base(publicPath)
	if err := os.Remove(filepath.Join(p.root, "proofs", name)); err != nil && !os.IsNotExist(err) {
		log.Printf("Proofs: failed to remove %s: %v", name, err)
	}
}
