// Generates fake finalize payloads for the three supported templates
// and writes them as JSON files. With -url the payloads are also posted
// to a running server.
//
// Usage:
//
//	go run scripts/generate_test_data.go -count 20 -out tests/data
//	go run scripts/generate_test_data.go -count 5 -url http://localhost:4000 -api-key secret
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var plantas = []string{"Teno", "Curicó", "San Fernando", "Rancagua"}

var templates = []struct {
	id    string
	title string
}{
	{"REG.CKU.013", "Precosecha Manzanas"},
	{"REG.CKU.014", "Recepción Madurez Pomáceas"},
	{"REG.CKU.027", "Inspección Pre-Embarque"},
}

func randomPayload() map[string]interface{} {
	template := templates[gofakeit.Number(0, len(templates)-1)]
	now := time.Now().UTC().Format(time.RFC3339)

	data := map[string]interface{}{
		"encabezado": map[string]interface{}{
			"planta":     plantas[gofakeit.Number(0, len(plantas)-1)],
			"temporada":  "2025-2026",
			"tipo_fruta": gofakeit.RandomString([]string{"Manzana", "Pera"}),
		},
	}

	switch template.id {
	case "REG.CKU.013":
		data["tipo_fruta"] = "Manzana"
		data["presiones"] = randomPresiones(true)
		data["almidon"] = randomAlmidon("fila")
		data["semillas"] = randomSemillas()
	case "REG.CKU.014":
		data["presiones"] = randomPresiones(false)
		data["almidon"] = randomAlmidon("muestra")
		data["madurez"] = randomMadurez()
	case "REG.CKU.027":
		data["inspecciones"] = randomInspecciones()
	}

	return map[string]interface{}{
		"id":          uuid.New().String(),
		"templateId":  template.id,
		"status":      "finalized",
		"createdAt":   now,
		"updatedAt":   now,
		"submittedBy": gofakeit.Username(),
		"user": map[string]interface{}{
			"id":    uuid.New().String(),
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
		},
		"template": map[string]interface{}{
			"title":   template.title,
			"version": fmt.Sprintf("%d.%d", gofakeit.Number(1, 3), gofakeit.Number(0, 9)),
		},
		"data": data,
	}
}

func randomPresiones(withVariedad bool) []map[string]interface{} {
	groups := make([]map[string]interface{}, gofakeit.Number(1, 4))
	for i := range groups {
		mediciones := make([]float64, gofakeit.Number(2, 6))
		for j := range mediciones {
			mediciones[j] = gofakeit.Float64Range(4, 12)
		}
		grupo := map[string]interface{}{
			"muestra":    i + 1,
			"mediciones": mediciones,
		}
		if withVariedad {
			grupo["variedad"] = gofakeit.RandomString([]string{"Gala", "Fuji", "Cripps Pink"})
		} else {
			grupo["frutos_esperados"] = len(mediciones)
		}
		groups[i] = grupo
	}
	return groups
}

func randomAlmidon(rowKey string) []map[string]interface{} {
	rows := make([]map[string]interface{}, gofakeit.Number(1, 3))
	for i := range rows {
		rows[i] = map[string]interface{}{
			rowKey:  i + 1,
			"valor": gofakeit.Float64Range(1, 9),
		}
	}
	return rows
}

func randomMadurez() []map[string]interface{} {
	rows := make([]map[string]interface{}, gofakeit.Number(1, 2))
	for i := range rows {
		rows[i] = map[string]interface{}{
			"muestra":     i + 1,
			"brix":        gofakeit.Float64Range(9, 16),
			"firmeza":     gofakeit.Float64Range(5, 10),
			"color_fondo": fmt.Sprintf("C%d", gofakeit.Number(1, 5)),
		}
	}
	return rows
}

func randomSemillas() []map[string]interface{} {
	rows := make([]map[string]interface{}, gofakeit.Number(1, 3))
	for i := range rows {
		rows[i] = map[string]interface{}{
			"fila":     i + 1,
			"cantidad": gofakeit.Number(3, 10),
		}
	}
	return rows
}

func randomInspecciones() []map[string]interface{} {
	inspections := make([]map[string]interface{}, gofakeit.Number(1, 3))
	for i := range inspections {
		presiones := make([]float64, gofakeit.Number(1, 4))
		for j := range presiones {
			presiones[j] = gofakeit.Float64Range(4, 12)
		}
		var hallazgos []map[string]interface{}
		if gofakeit.Bool() {
			hallazgos = append(hallazgos, map[string]interface{}{
				"defecto":  gofakeit.RandomString([]string{"machucón", "russet", "pudrición"}),
				"cantidad": gofakeit.Number(1, 5),
			})
		}
		inspections[i] = map[string]interface{}{
			"numero":     i + 1,
			"resolucion": gofakeit.RandomString([]string{"APROBADO", "OBJETADO", "RECHAZADO"}),
			"n_frutos":   len(presiones),
			"presiones":  presiones,
			"hallazgos":  hallazgos,
		}
	}
	return inspections
}

func main() {
	count := flag.Int("count", 10, "number of payloads to generate")
	outDir := flag.String("out", filepath.Join("tests", "data"), "output directory")
	serverURL := flag.String("url", "", "optional server base URL to post payloads to")
	apiKey := flag.String("api-key", "", "x-api-key for posting")
	flag.Parse()

	gofakeit.Seed(0)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	client := &http.Client{Timeout: 15 * time.Second}

	for i := 0; i < *count; i++ {
		payload := randomPayload()
		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			log.Fatalf("failed to marshal payload: %v", err)
		}

		name := filepath.Join(*outDir, fmt.Sprintf("submission_%03d.json", i+1))
		if err := os.WriteFile(name, body, 0644); err != nil {
			log.Fatalf("failed to write %s: %v", name, err)
		}

		if *serverURL != "" {
			req, err := http.NewRequest(http.MethodPost, *serverURL+"/api/submissions/finalize", bytes.NewReader(body))
			if err != nil {
				log.Fatalf("failed to build request: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")
			if *apiKey != "" {
				req.Header.Set("x-api-key", *apiKey)
			}
			resp, err := client.Do(req)
			if err != nil {
				log.Fatalf("failed to post payload: %v", err)
			}
			resp.Body.Close()
			fmt.Printf("posted %s -> %d\n", payload["id"], resp.StatusCode)
		}
	}

	fmt.Printf("generated %d payloads in %s\n", *count, *outDir)
}
