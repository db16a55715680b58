package validate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/devgenius/artifact-gateway/internal/domain"
)

const goodDiagram = `<mxGraphModel dx="1426" dy="794">
  <root>
    <mxCell id="0"/>
    <mxCell id="1" parent="0"/>
    <mxCell id="2" value="Lambda" style="shape=mxgraph.aws4.lambda" vertex="1" parent="1">
      <mxGeometry x="10" y="10" width="78" height="78" as="geometry"/>
    </mxCell>
  </root>
</mxGraphModel>`

func TestDiagramXML(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantValid    bool
		wantIssues   []string
		wantWarnings []string
	}{
		{
			name:      "well formed",
			content:   goodDiagram,
			wantValid: true,
		},
		{
			name:       "unbalanced cells",
			content:    `<mxGraphModel><root><mxCell id="2" value="aws"></root></mxGraphModel>`,
			wantIssues: []string{"Unbalanced mxCell tags: 1 opening, 0 closing"},
		},
		{
			name:    "text around markup",
			content: "here is xml <mxGraphModel></mxGraphModel> done",
			wantIssues: []string{
				"XML does not start with an opening tag",
				"XML does not end with a closing tag",
			},
			wantWarnings: []string{"No AWS icons detected in diagram"},
		},
		{
			name:      "not drawio",
			content:   `<svg><g>amazon</g></svg>`,
			wantValid: true,
			wantWarnings: []string{
				"No mxGraphModel or diagram tag found - might not be valid draw.io format",
			},
		},
		{
			// Balance is a count, so misnesting is accepted.
			name:      "misnested but counted",
			content:   `<mxGraphModel><root aws="1"></mxGraphModel></root>`,
			wantValid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DiagramXML(tt.content)
			if r.Valid != tt.wantValid {
				t.Errorf("Valid = %v, issues = %v", r.Valid, r.Issues)
			}
			if tt.wantIssues != nil && !reflect.DeepEqual(r.Issues, tt.wantIssues) {
				t.Errorf("Issues = %q, want %q", r.Issues, tt.wantIssues)
			}
			if tt.wantWarnings != nil && !reflect.DeepEqual(r.Warnings, tt.wantWarnings) {
				t.Errorf("Warnings = %q, want %q", r.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestDiagramXMLStats(t *testing.T) {
	r := DiagramXML(goodDiagram)
	// Opening: mxGraphModel, root, mxCell id=2. Closing: mxCell, root, mxGraphModel.
	if r.Stats["total_tags"] != 6 {
		t.Errorf("total_tags = %v", r.Stats["total_tags"])
	}
	if r.Stats["total_lines"] != 9 {
		t.Errorf("total_lines = %v", r.Stats["total_lines"])
	}
	if r.Stats["has_graph_model"] != true || r.Stats["has_cells"] != true {
		t.Errorf("stats = %v", r.Stats)
	}
}

const goodDSL = `workspace "Shop" {
    model {
        user = person "Customer"
        shop = softwareSystem "Shop" {
            web = container "Web" "" "React"
        }
        user -> shop "Buys"
    }
    views {
        systemContext shop {
            include *
            autoLayout
        }
    }
}`

func TestDSL(t *testing.T) {
	r := DSL(goodDSL)
	if !r.Valid || len(r.Warnings) != 0 {
		t.Fatalf("expected clean result, got %+v", r)
	}
	if r.Stats["relationship_count"] != 1 {
		t.Errorf("relationship_count = %v", r.Stats["relationship_count"])
	}

	r = DSL("workspace { model { } }")
	if r.Valid {
		t.Fatal("missing views should be invalid")
	}
	if !reflect.DeepEqual(r.Issues, []string{"Missing required element: views"}) {
		t.Errorf("Issues = %q", r.Issues)
	}
	if !reflect.DeepEqual(r.Warnings, []string{"Consider adding 'autoLayout' to views for better diagram layout"}) {
		t.Errorf("Warnings = %q", r.Warnings)
	}

	r = DSL("WORKSPACE MODEL VIEWS autoLayout {")
	if !reflect.DeepEqual(r.Issues, []string{"Unbalanced braces: 1 opening, 0 closing"}) {
		t.Errorf("Issues = %q", r.Issues)
	}

	r = DSL("something else")
	if len(r.Issues) != 3 {
		t.Errorf("every missing element should be reported: %q", r.Issues)
	}
}

func TestDSLBraceCountIgnoresOrder(t *testing.T) {
	r := DSL("workspace model views autoLayout }{")
	if !r.Valid {
		t.Errorf("}{ has equal counts and should pass: %q", r.Issues)
	}
}

func TestCleanDSL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "  " + goodDSL + "\n\n", goodDSL},
		{
			name: "prose around block",
			in:   "Here is the DSL:\n  workspace {\n  model {}\n}\ntrailing notes",
			want: "workspace {\n  model {}\n}",
		},
		{
			name: "unterminated block kept",
			in:   "intro\nworkspace {\nmodel {",
			want: "intro\nworkspace {\nmodel {",
		},
		{"no workspace", "  nothing here  ", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanDSL(tt.in)
			if got != tt.want {
				t.Errorf("CleanDSL() = %q, want %q", got, tt.want)
			}
			if again := CleanDSL(got); again != got {
				t.Errorf("CleanDSL not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestCloudFormation(t *testing.T) {
	good := `AWSTemplateFormatVersion: "2010-09-09"
Parameters:
  Env:
    Type: String
Resources:
  Bucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: !Sub "${Env}-data"
  Fn:
    Type: AWS::Lambda::Function
    Properties:
      Role: !GetAtt Role.Arn
Outputs:
  BucketName:
    Value: !Ref Bucket
`
	r := CloudFormation(good)
	if !r.Valid || len(r.Warnings) != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Stats["resource_count"] != 2 || r.Stats["parameter_count"] != 1 || r.Stats["output_count"] != 1 {
		t.Errorf("stats = %v", r.Stats)
	}
	if !reflect.DeepEqual(r.Stats["resource_types"], []string{"AWS::Lambda::Function", "AWS::S3::Bucket"}) {
		t.Errorf("resource_types = %v", r.Stats["resource_types"])
	}

	tests := []struct {
		name  string
		input string
		issue string
	}{
		{"no resources", "AWSTemplateFormatVersion: '2010-09-09'\n", "Missing required section: Resources"},
		{"empty resources", "Resources: {}\n", "Resources section must declare at least one resource"},
		{"not a mapping", "- a\n- b\n", "Template must be a YAML mapping"},
		{"missing type", "Resources:\n  A:\n    Properties: {}\n", "1 resource(s) missing Type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CloudFormation(tt.input)
			if r.Valid || len(r.Issues) == 0 || r.Issues[0] != tt.issue {
				t.Errorf("Issues = %q, want %q", r.Issues, tt.issue)
			}
		})
	}

	if r := CloudFormation("Resources:\n  A: [unclosed\n"); r.Valid || !strings.HasPrefix(r.Issues[0], "Invalid YAML") {
		t.Errorf("Issues = %q", r.Issues)
	}
	if r := CloudFormation("Resources:\n  A:\n    Type: AWS::SQS::Queue\n"); !r.Valid || len(r.Warnings) != 1 {
		t.Errorf("missing version should only warn: %+v", r)
	}
}

func TestCDK(t *testing.T) {
	good := `import * as cdk from 'aws-cdk-lib';
import { Construct } from 'constructs';
import * as s3 from 'aws-cdk-lib/aws-s3';

export class Stack extends cdk.Stack {
  constructor(scope: Construct, id: string) {
    super(scope, id);
    new s3.Bucket(this, 'Data');
  }
}`
	r := CDK(good)
	if !r.Valid || len(r.Warnings) != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Stats["construct_count"] != 1 {
		t.Errorf("construct_count = %v", r.Stats["construct_count"])
	}

	r = CDK("const x = {")
	if r.Valid || len(r.Issues) != 2 {
		t.Errorf("Issues = %q", r.Issues)
	}
	if r := CDK("   "); r.Valid {
		t.Error("empty code should be invalid")
	}
}

func TestCostTable(t *testing.T) {
	table := `| Service | Configuration | Monthly |
|---|---|---:|
| Amazon S3 | 100 GB | USD 2.30 |
| Total | | USD 2.30 |`
	r := CostTable(table)
	if !r.Valid || len(r.Warnings) != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Stats["table_rows"] != 3 {
		t.Errorf("table_rows = %v", r.Stats["table_rows"])
	}

	r = CostTable("| Service | Monthly |\n|---|---|\n| S3 | 1 |")
	if !r.Valid || len(r.Warnings) != 1 {
		t.Errorf("missing total should warn: %+v", r)
	}
	if r := CostTable("About USD 40 per month."); r.Valid {
		t.Error("prose without a table should be invalid")
	}
}

func TestDocumentation(t *testing.T) {
	if r := Documentation("# Overview\n\nText."); !r.Valid || len(r.Warnings) != 0 {
		t.Errorf("unexpected result: %+v", r)
	}
	if r := Documentation("plain text"); !r.Valid || len(r.Warnings) != 1 {
		t.Errorf("missing heading should warn: %+v", r)
	}
	if r := Documentation("\n \n"); r.Valid {
		t.Error("empty documentation should be invalid")
	}
}

func TestFor(t *testing.T) {
	for _, k := range domain.Kinds() {
		if _, ok := For(k); !ok {
			t.Errorf("no validator for %s", k)
		}
	}
	if _, ok := For("bogus"); ok {
		t.Error("unexpected validator for unknown kind")
	}
}
