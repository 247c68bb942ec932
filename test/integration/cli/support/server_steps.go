package support

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/server"
	"github.com/cucumber/godog"
)

// startTestServer runs the HTTP API in-process.
func (testCtx *TestContext) startTestServer(rateLimit float64, burst int) error {
	cfg := server.Config{
		CORSOrigin:    "*",
		MaxUploadMB:   5,
		TimeoutSec:    30,
		MaxIterations: 10,
		RateLimit:     rateLimit,
		RateBurst:     burst,
		Pipeline:      pipeline.DefaultConfig(),
	}
	cfg.Pipeline.Iterations = 3

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) aSegmentationServerIsRunning() error {
	return testCtx.startTestServer(0, 0)
}

func (testCtx *TestContext) aRateLimitedServerIsRunning(perSecond float64, burst int) error {
	return testCtx.startTestServer(perSecond, burst)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = resp.Header
	testCtx.LastHTTPResponse = body
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	resp, err := http.Get(testCtx.GetServerURL() + path) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

// iUploadWithFields posts a multipart request. The table has two columns,
// field and value; values starting with "@" are uploaded as files.
func (testCtx *TestContext) iUploadWithFields(file string, table *godog.Table) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	addFile := func(field, name string) error {
		data, err := os.ReadFile(testCtx.Path(name))
		if err != nil {
			return err
		}
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			return err
		}
		_, err = part.Write(data)
		return err
	}

	if err := addFile("image", file); err != nil {
		return err
	}
	if table != nil {
		for _, row := range table.Rows {
			field, value := row.Cells[0].Value, row.Cells[1].Value
			if field == "field" {
				continue
			}
			if name, ok := strings.CutPrefix(value, "@"); ok {
				if err := addFile(field, name); err != nil {
					return err
				}
				continue
			}
			if err := w.WriteField(field, value); err != nil {
				return err
			}
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.GetServerURL()+"/segment", body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iUpload(file string) error {
	return testCtx.iUploadWithFields(file, nil)
}

func (testCtx *TestContext) iUploadTimes(file string, n int) error {
	for range n {
		if err := testCtx.iUpload(file); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != want {
		return fmt.Errorf("header %s is %q, want %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !bytes.Contains(testCtx.LastHTTPResponse, []byte(text)) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, want string) error {
	obj, err := parseJSONObject(testCtx.LastHTTPResponse)
	if err != nil {
		return err
	}
	return fieldEquals(obj, field, want)
}

// theServerIsStartedWith launches "cutout serve" as a child process on a
// free port and waits for /health.
func (testCtx *TestContext) theServerIsStartedWith(args string) error {
	port, err := freePort()
	if err != nil {
		return err
	}
	return testCtx.StartServer(fmt.Sprintf("cutout serve --host %s --port %d %s", testCtx.ServerHost, port, args))
}

func (testCtx *TestContext) theServerReceivesSIGTERM() error {
	start := time.Now()
	err := testCtx.StopServerProcess()
	if time.Since(start) > 15*time.Second {
		return fmt.Errorf("server took %v to stop", time.Since(start))
	}
	return err
}

func (testCtx *TestContext) theServerShouldNoLongerRespond() error {
	if testCtx.isServerHealthy() {
		return fmt.Errorf("server on port %d is still answering", testCtx.ServerPort)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a segmentation server is running$`, testCtx.aSegmentationServerIsRunning)
	sc.Step(`^a segmentation server is running with rate limit ([\d.]+) per second and burst (\d+)$`,
		testCtx.aRateLimitedServerIsRunning)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload "([^"]*)" to /segment$`, testCtx.iUpload)
	sc.Step(`^I upload "([^"]*)" to /segment (\d+) times$`, testCtx.iUploadTimes)
	sc.Step(`^I upload "([^"]*)" to /segment with:$`, testCtx.iUploadWithFields)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the server is started with "([^"]*)"$`, testCtx.theServerIsStartedWith)
	sc.Step(`^the server is started$`, func() error { return testCtx.theServerIsStartedWith("") })
	sc.Step(`^the server receives SIGTERM$`, testCtx.theServerReceivesSIGTERM)
	sc.Step(`^the server should no longer respond$`, testCtx.theServerShouldNoLongerRespond)
}
