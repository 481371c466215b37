// internal/workers/grading/grade-student-records/models.go
package gradestudentrecords

// RecordInput is one student row in the job variables. Grades and age may
// arrive as JSON numbers, strings or null.
type RecordInput struct {
	Name   string      `json:"name"`
	ID     string      `json:"id"`
	Age    interface{} `json:"age"`
	Grade1 interface{} `json:"grade1"`
	Grade2 interface{} `json:"grade2"`
	Grade3 interface{} `json:"grade3"`
}

// Input carries either inline records or a CSV path on the worker's host.
type Input struct {
	Records       []RecordInput `json:"records,omitempty"`
	InputPath     string        `json:"inputPath,omitempty"`
	OutputPath    string        `json:"outputPath,omitempty"`
	PassThreshold *float64      `json:"passThreshold,omitempty"`
}

type Result struct {
	ID             string `json:"id"`
	Age            string `json:"age"`
	AveragePercent string `json:"averagePercent"`
	Status         string `json:"status"`
}

type Output struct {
	RunID       string   `json:"runId"`
	RowCount    int      `json:"rowCount"`
	PassedCount int      `json:"passedCount"`
	FailedCount int      `json:"failedCount"`
	OutputPath  string   `json:"outputPath,omitempty"`
	Results     []Result `json:"results"`
}
