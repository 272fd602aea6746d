package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

func TestThatWorkbookContainsTotalsAndReadings(t *testing.T) {
	temp := 21.5
	report := ClassReport{
		ClassName: "Room 101",
		StartDate: "2024-03-01",
		EndDate:   "2024-03-31",
		Totals: []database.DeviceTotal{
			{ID: 1, DeviceName: "AC 1", DeviceType: "AC", TotalConsumption: 12.5, AvgConsumption: 2.5, PeakConsumption: 4, ReadingsCount: 5},
		},
		Readings: []database.ClassConsumption{
			{
				DeviceConsumption: models.DeviceConsumption{
					DeviceID: 1, Consumption: 2.5, ConsumptionDate: "2024-03-05",
					HourStart: "10:00:00", HourEnd: "10:59:59", Temperature: &temp,
				},
				DeviceName: "AC 1",
				DeviceType: "AC",
			},
		},
	}

	content, err := Workbook(report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetTotals, SheetReadings}, f.GetSheetList())

	totals, err := f.GetRows(SheetTotals)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "Device", totals[0][1])
	assert.Equal(t, []string{"1", "AC 1", "AC", "12.5", "2.5", "4", "5"}, totals[1])

	readings, err := f.GetRows(SheetReadings)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "2024-03-05", readings[1][0])
	assert.Equal(t, "10:00:00", readings[1][1])
	assert.Equal(t, "21.5", readings[1][6])

	assert.Equal(t, "Room_101_2024-03-01_2024-03-31.xlsx", report.FileName())
}

func TestThatEmptyReportsStillHaveHeaders(t *testing.T) {
	content, err := Workbook(ClassReport{ClassName: "Empty", StartDate: "2024-03-01", EndDate: "2024-03-01"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetReadings)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestThatArchiverUploadsToTheConfiguredBucket(t *testing.T) {
	var mu sync.Mutex
	var method, path, contentType string
	var size int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		method, path, contentType, size = r.Method, r.URL.Path, r.Header.Get("Content-Type"), len(body)
		mu.Unlock()

		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := s3.New(s3.Options{
		Region:       "eu-north-1",
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
	})

	archiver := NewArchiver(client, config.Export{Bucket: "reports-bucket", Prefix: "reports/"}, logging.NewLogger())
	archiver.now = func() time.Time { return time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC) }

	key, err := archiver.Archive(context.Background(), "Room_101.xlsx", []byte("workbook"))
	require.NoError(t, err)
	assert.Equal(t, "reports/2024/04/01/Room_101.xlsx", key)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/reports-bucket/reports/2024/04/01/Room_101.xlsx", path)
	assert.Equal(t, ContentType, contentType)
	assert.NotZero(t, size)
}

func TestThatArchiverReportsUploadFailures(t *testing.T) {
	putter := &putterMock{err: io.ErrUnexpectedEOF}
	archiver := NewArchiver(putter, config.Export{Bucket: "b"}, logging.NewLogger())

	_, err := archiver.Archive(context.Background(), "x.xlsx", []byte("x"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bucket b"))
	assert.Equal(t, "b", *putter.input.Bucket)
}

type putterMock struct {
	input *s3.PutObjectInput
	err   error
}

func (p *putterMock) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.input = params
	return nil, p.err
}
