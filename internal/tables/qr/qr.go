package qr

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"mesa-pos/internal/models"
)

// Generator renders the patron URL of a table as a QR PNG.
type Generator struct {
	baseURL string
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: baseURL}
}

func (g *Generator) TableURL(table models.Table) string {
	return fmt.Sprintf("%s/m/%s?t=%s", g.baseURL, table.Slug, table.Token)
}

func (g *Generator) GenerateTableQR(table models.Table) ([]byte, error) {
	return qrcode.Encode(g.TableURL(table), qrcode.Medium, 300)
}
