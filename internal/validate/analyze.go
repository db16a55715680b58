package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var servicePatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)lambda`), "AWS Lambda"},
	{regexp.MustCompile(`(?i)s3|bucket`), "Amazon S3"},
	{regexp.MustCompile(`(?i)dynamodb|dynamo`), "Amazon DynamoDB"},
	{regexp.MustCompile(`(?i)api.?gateway`), "API Gateway"},
	{regexp.MustCompile(`(?i)vpc`), "Amazon VPC"},
	{regexp.MustCompile(`(?i)ec2`), "Amazon EC2"},
	{regexp.MustCompile(`(?i)rds|aurora`), "Amazon RDS"},
	{regexp.MustCompile(`(?i)cloudfront`), "Amazon CloudFront"},
	{regexp.MustCompile(`(?i)cognito`), "Amazon Cognito"},
	{regexp.MustCompile(`(?i)sqs|queue`), "Amazon SQS"},
	{regexp.MustCompile(`(?i)sns|topic`), "Amazon SNS"},
	{regexp.MustCompile(`(?i)elasticache|redis|memcached`), "Amazon ElastiCache"},
	{regexp.MustCompile(`(?i)alb|elb|load.?balancer`), "Elastic Load Balancing"},
	{regexp.MustCompile(`(?i)ecs|fargate`), "Amazon ECS"},
	{regexp.MustCompile(`(?i)eks|kubernetes`), "Amazon EKS"},
}

// summaryServiceLimit caps how many services the summary line names.
const summaryServiceLimit = 5

type DiagramStats struct {
	TotalCells       int  `json:"total_cells"`
	TotalConnections int  `json:"total_connections"`
	ServiceCount     int  `json:"service_count"`
	HasVPC           bool `json:"has_vpc"`
	XMLSizeBytes     int  `json:"xml_size_bytes"`
}

// DiagramAnalysis describes what a draw.io diagram contains.
type DiagramAnalysis struct {
	Services   []string     `json:"services"`
	Statistics DiagramStats `json:"statistics"`
	Summary    string       `json:"summary"`
}

// AnalyzeDiagram detects cloud services by keyword and counts cells and
// edges. Detection is lexical: any attribute or label mentioning a service
// counts.
func AnalyzeDiagram(xml string) *DiagramAnalysis {
	a := &DiagramAnalysis{Services: []string{}}
	for _, p := range servicePatterns {
		if p.re.MatchString(xml) {
			a.Services = append(a.Services, p.name)
		}
	}

	a.Statistics = DiagramStats{
		TotalCells:       strings.Count(xml, "<mxCell"),
		TotalConnections: strings.Count(xml, `edge="1"`),
		ServiceCount:     len(a.Services),
		HasVPC:           strings.Contains(strings.ToLower(xml), "vpc"),
		XMLSizeBytes:     len(xml),
	}

	if len(a.Services) == 0 {
		a.Summary = "No AWS services detected in diagram"
		return a
	}
	shown := a.Services
	if len(shown) > summaryServiceLimit {
		shown = shown[:summaryServiceLimit]
	}
	a.Summary = fmt.Sprintf("Architecture diagram contains %d AWS service(s): %s", len(a.Services), strings.Join(shown, ", "))
	if extra := len(a.Services) - summaryServiceLimit; extra > 0 {
		a.Summary += fmt.Sprintf(" and %d more", extra)
	}
	return a
}

type DSLElements struct {
	HasWorkspace  bool `json:"has_workspace"`
	HasModel      bool `json:"has_model"`
	HasViews      bool `json:"has_views"`
	HasPersons    bool `json:"has_persons"`
	HasSystems    bool `json:"has_systems"`
	HasContainers bool `json:"has_containers"`
	HasComponents bool `json:"has_components"`
}

type DSLStats struct {
	TotalLines        int `json:"total_lines"`
	BracePairs        int `json:"brace_pairs"`
	RelationshipCount int `json:"relationship_count"`
}

// DSLExplanation summarises the structure of a Structurizr workspace.
type DSLExplanation struct {
	Cleaned    string      `json:"cleaned_code"`
	Elements   DSLElements `json:"elements"`
	Statistics DSLStats    `json:"statistics"`
	Summary    string      `json:"summary"`
}

// ExplainDSL cleans dsl and reports which element kinds it declares.
func ExplainDSL(dsl string) *DSLExplanation {
	cleaned := CleanDSL(dsl)
	lower := strings.ToLower(cleaned)

	e := DSLElements{
		HasWorkspace:  strings.Contains(lower, "workspace"),
		HasModel:      strings.Contains(lower, "model"),
		HasViews:      strings.Contains(lower, "views"),
		HasPersons:    strings.Contains(lower, "person"),
		HasSystems:    strings.Contains(lower, "softwaresystem"),
		HasContainers: strings.Contains(lower, "container"),
		HasComponents: strings.Contains(lower, "component"),
	}

	present := []struct {
		ok   bool
		name string
	}{
		{e.HasWorkspace, "workspace"},
		{e.HasModel, "model"},
		{e.HasViews, "views"},
		{e.HasPersons, "persons"},
		{e.HasSystems, "systems"},
		{e.HasContainers, "containers"},
		{e.HasComponents, "components"},
	}
	var names []string
	for _, p := range present {
		if p.ok {
			names = append(names, p.name)
		}
	}

	return &DSLExplanation{
		Cleaned:  cleaned,
		Elements: e,
		Statistics: DSLStats{
			TotalLines:        lineCount(cleaned),
			BracePairs:        strings.Count(cleaned, "{"),
			RelationshipCount: strings.Count(cleaned, "->"),
		},
		Summary: "DSL contains: " + strings.Join(names, ", "),
	}
}
