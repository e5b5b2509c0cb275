package haruspex

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type taskTuple[T any] struct {
	index int
	element T
}

const dateLayout = "2006-01-02"
const dateTimeLayout = "2006-01-02 15:04:05"

var ErrInvalidConfiguration = errors.New("invalid configuration")
var ErrNoData = errors.New("no data")

type MissingColumnsError struct {
	Path string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns in %s: %s", e.Path, strings.Join(e.Columns, ", "))
}

func getDate(dateString string) (time.Time, error) {
	trimmed := strings.TrimSpace(dateString)
	for _, layout := range []string{dateLayout, dateTimeLayout, time.RFC3339} {
		date, err := time.Parse(layout, trimmed)
		if err == nil {
			return getDateFromTime(date), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date string \"%s\"", dateString)
}

func getTimestamp(timeString string) (time.Time, error) {
	trimmed := strings.TrimSpace(timeString)
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		dateTimeLayout,
		dateLayout,
	}
	for _, layout := range layouts {
		timestamp, err := time.Parse(layout, trimmed)
		if err == nil {
			return timestamp.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp \"%s\"", timeString)
}

func getDateString(date time.Time) string {
	return date.Format(dateLayout)
}

func getDateFromTime(timestamp time.Time) time.Time {
	return time.Date(timestamp.Year(), timestamp.Month(), timestamp.Day(), 0, 0, 0, 0, time.UTC)
}

// Empty strings, NaN and unparseable values all map to nil.
func parseOptionalFloat(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	number, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return nil
	}
	return &number
}

func formatOptionalFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func getWorkers(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

func parallelMap[A, B any](workers int, elements []A, callback func(A) B) []B {
	workers = min(getWorkers(workers), max(len(elements), 1))
	elementChan := make(chan taskTuple[A], len(elements))
	for i, x := range elements {
		elementChan <- taskTuple[A]{
			index: i,
			element: x,
		}
	}
	close(elementChan)
	var wg sync.WaitGroup
	wg.Add(workers)
	output := make([]B, len(elements))
	for range workers {
		go func() {
			defer wg.Done()
			for task := range elementChan {
				output[task.index] = callback(task.element)
			}
		}()
	}
	wg.Wait()
	return output
}

func writeFile(path, data string) error {
	err := os.WriteFile(path, []byte(data), 0644)
	if err != nil {
		return fmt.Errorf("failed to write file (%s): %w", path, err)
	}
	return nil
}

// readCsv validates every column before invoking the callback, so a file with
// missing headers never produces partial results.
func readCsv(path string, columns []string, callback func([]string)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read CSV file (%s): %w", path, err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV headers (%s): %w", path, err)
	}
	headerMap := map[string]int{}
	for index, header := range headers {
		header = strings.TrimPrefix(strings.TrimSpace(header), "\ufeff")
		if _, exists := headerMap[header]; !exists {
			headerMap[header] = index
		}
	}
	var indexMap []int
	var missing []string
	for _, column := range columns {
		index, ok := headerMap[column]
		if !ok {
			missing = append(missing, column)
			continue
		}
		indexMap = append(indexMap, index)
	}
	if len(missing) > 0 {
		return &MissingColumnsError{
			Path: path,
			Columns: missing,
		}
	}
	callbackColumns := make([]string, len(columns))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("error occurred while reading CSV file (%s): %w", path, err)
		}
		for destination, source := range indexMap {
			if source < len(record) {
				callbackColumns[destination] = record[source]
			} else {
				callbackColumns[destination] = ""
			}
		}
		callback(callbackColumns)
	}
	return nil
}

func writeCsv(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file (%s): %w", path, err)
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write CSV header (%s): %w", path, err)
	}
	err = writer.WriteAll(rows)
	if err != nil {
		return fmt.Errorf("failed to write CSV rows (%s): %w", path, err)
	}
	return nil
}

func getRateOfChange(a, b float64) (float64, bool) {
	if a < 0 || b <= 0 {
		return 0, false
	}
	return a / b - 1, true
}
