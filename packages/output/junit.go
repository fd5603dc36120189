package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a run
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single feature
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats the run as JUnit XML. Crashed features are
// reported as errors, failed ones as failures.
type JUnitFormatter struct {
	writer io.Writer
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.Result) error {
	name := "suiterun"
	if result.Environment != "" {
		name += "." + result.Environment
	}
	timestamp := result.StartedAt.UTC().Format("2006-01-02T15:04:05")

	suite := JUnitTestSuite{
		Name:      name,
		Tests:     result.Total,
		Failures:  result.Failed - result.Errors,
		Errors:    result.Errors,
		Skipped:   result.Skipped,
		Time:      result.WallClock.Seconds(),
		Timestamp: timestamp,
	}

	for _, o := range result.Outcomes {
		tc := JUnitTestCase{
			Name:      o.Feature,
			ClassName: o.Key(),
			Time:      o.Duration.Seconds(),
		}
		switch {
		case o.Status == runner.StatusSkipped:
			tc.Skipped = &JUnitSkipped{Message: o.SkipReason}
		case o.Fatal:
			tc.Error = &JUnitError{Message: o.Error(), Type: "ExecutionError", Content: o.Error()}
		case o.Status == runner.StatusFailed:
			tc.Failure = &JUnitFailure{Message: o.Error(), Type: "FeatureFailure", Content: stepReport(o)}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	suites := JUnitTestSuites{
		Name:       name,
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Skipped:    suite.Skipped,
		Time:       suite.Time,
		Timestamp:  timestamp,
		TestSuites: []JUnitTestSuite{suite},
	}

	fmt.Fprint(f.writer, xml.Header)
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	fmt.Fprintln(f.writer)
	return nil
}

func stepReport(o *runner.Outcome) string {
	if len(o.Steps) == 0 {
		return o.Error()
	}
	var b strings.Builder
	for _, st := range o.Steps {
		fmt.Fprintf(&b, "%s: %s", st.Name, st.Status)
		if st.Err != nil {
			fmt.Fprintf(&b, " - %v", st.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are reported per test case
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit output
}
