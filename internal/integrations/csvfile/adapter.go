// Package csvfile reads delivery orders from a CSV drop file, the lowest
// common denominator for shipper integrations.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"fleetnav/internal/integrations"
	"fleetnav/internal/model"
)

// Columns: external_ref,destination,weight_tons,priority,deadline
type Adapter struct {
	Path      string
	BatchSize int
}

func (a Adapter) Name() string { return "csv-file" }

func (a Adapter) FetchOrders(cursor string) (integrations.OrderBatch, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return integrations.OrderBatch{}, err
	}
	defer f.Close()

	start := 0
	if cursor != "" {
		if start, err = strconv.Atoi(cursor); err != nil {
			return integrations.OrderBatch{}, fmt.Errorf("csvfile: bad cursor %q", cursor)
		}
	}
	size := a.BatchSize
	if size <= 0 {
		size = 100
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = 5
	if _, err := r.Read(); err != nil { // header
		if err == io.EOF {
			return integrations.OrderBatch{}, nil
		}
		return integrations.OrderBatch{}, err
	}

	var batch integrations.OrderBatch
	row := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return integrations.OrderBatch{}, err
		}
		row++
		if row <= start {
			continue
		}
		o, err := parseOrder(rec)
		if err != nil {
			return integrations.OrderBatch{}, fmt.Errorf("csvfile: row %d: %w", row, err)
		}
		batch.Orders = append(batch.Orders, o)
		if len(batch.Orders) == size {
			batch.Cursor = strconv.Itoa(row)
			break
		}
	}
	return batch, nil
}

func parseOrder(rec []string) (model.OrderIn, error) {
	dest, err := strconv.Atoi(rec[1])
	if err != nil {
		return model.OrderIn{}, fmt.Errorf("destination: %w", err)
	}
	weight, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return model.OrderIn{}, fmt.Errorf("weight_tons: %w", err)
	}
	prio := 0
	if rec[3] != "" {
		if prio, err = strconv.Atoi(rec[3]); err != nil {
			return model.OrderIn{}, fmt.Errorf("priority: %w", err)
		}
	}
	var deadline int64
	if rec[4] != "" {
		if deadline, err = strconv.ParseInt(rec[4], 10, 64); err != nil {
			return model.OrderIn{}, fmt.Errorf("deadline: %w", err)
		}
	}
	return model.OrderIn{
		ExternalRef: rec[0],
		Destination: dest,
		WeightTons:  weight,
		Priority:    prio,
		Deadline:    deadline,
	}, nil
}
