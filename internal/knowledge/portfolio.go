// Package knowledge holds the portfolio content the site and the assistant
// draw from.
package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed portfolio.json
var embeddedPortfolio []byte

// Portfolio is the structured portfolio content.
type Portfolio struct {
	Personal       Personal     `json:"personal"`
	Interests      Interests    `json:"interests"`
	CareerGoals    CareerGoals  `json:"career_goals"`
	Summary        string       `json:"summary"`
	Skills         Skills       `json:"skills"`
	Experience     []Experience `json:"experience"`
	Projects       []Project    `json:"projects"`
	Education      Education    `json:"education"`
	Certifications []string     `json:"certifications"`
}

type Personal struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	LinkedIn     string   `json:"linkedin"`
	GitHub       string   `json:"github"`
	Location     string   `json:"location"`
	Status       string   `json:"status"`
	Languages    []string `json:"languages"`
	Availability string   `json:"availability"`
}

type Interests struct {
	Hobbies   []string `json:"hobbies"`
	WorkEthic string   `json:"work_ethic"`
	FunFact   string   `json:"fun_fact"`
}

type CareerGoals struct {
	TargetRole   string   `json:"target_role"`
	Vision       string   `json:"vision"`
	LearningPath []string `json:"learning_path"`
	Motivation   string   `json:"motivation"`
}

type Skills struct {
	Languages       []string `json:"languages"`
	Frameworks      []string `json:"frameworks"`
	MachineLearning []string `json:"machine_learning"`
	Tools           []string `json:"tools"`
}

type Experience struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Location         string   `json:"location"`
	Period           string   `json:"period"`
	Responsibilities []string `json:"responsibilities"`
}

type Project struct {
	Title        string   `json:"title"`
	Technologies []string `json:"technologies"`
	Year         string   `json:"year"`
	Category     string   `json:"category"`
	Status       string   `json:"status,omitempty"`
	Details      []string `json:"details"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	GPA         string `json:"gpa"`
	Location    string `json:"location"`
	Period      string `json:"period"`
}

// Default returns the portfolio compiled into the binary.
func Default() *Portfolio {
	p, err := Parse(embeddedPortfolio)
	if err != nil {
		panic("knowledge: embedded portfolio is invalid: " + err.Error())
	}
	return p
}

// Parse decodes and validates portfolio JSON.
func Parse(data []byte) (*Portfolio, error) {
	var p Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode portfolio: %w", err)
	}
	if strings.TrimSpace(p.Personal.Name) == "" {
		return nil, fmt.Errorf("portfolio is missing personal.name")
	}
	return &p, nil
}

// LoadFile reads portfolio JSON from path.
func LoadFile(path string) (*Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	return Parse(data)
}

// Render produces the plain-text context block given to the assistant.
func (p *Portfolio) Render() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("=== %s - PORTFOLIO INFORMATION ===", strings.ToUpper(p.Personal.Name))
	line("")
	line("CONTACT & AVAILABILITY:")
	line("- Email: %s", p.Personal.Email)
	line("- LinkedIn: %s", p.Personal.LinkedIn)
	line("- GitHub: %s", p.Personal.GitHub)
	line("- Location: %s", p.Personal.Location)
	line("- Languages: %s", strings.Join(p.Personal.Languages, ", "))
	line("- Status: %s", p.Personal.Status)
	line("- Availability: %s", p.Personal.Availability)
	line("")
	line("PERSONALITY & INTERESTS (for casual conversation):")
	line("- Hobbies: %s", strings.Join(p.Interests.Hobbies, "; "))
	line("- Work Ethic: %s", p.Interests.WorkEthic)
	line("- Fun Fact: %s", p.Interests.FunFact)
	line("")
	line("CAREER GOALS:")
	line("- Target Role: %s", p.CareerGoals.TargetRole)
	line("- Vision: %s", p.CareerGoals.Vision)
	line("- Currently Learning: %s", strings.Join(p.CareerGoals.LearningPath, ", "))
	line("- Motivation: %s", p.CareerGoals.Motivation)
	line("")
	line("PROFESSIONAL SUMMARY:")
	line("%s", p.Summary)
	line("")
	line("TECHNICAL SKILLS:")
	line("• Programming Languages: %s", strings.Join(p.Skills.Languages, ", "))
	line("• Frameworks & Libraries: %s", strings.Join(p.Skills.Frameworks, ", "))
	line("• Machine Learning & AI: %s", strings.Join(p.Skills.MachineLearning, ", "))
	line("• Developer Tools: %s", strings.Join(p.Skills.Tools, ", "))
	line("")
	line("WORK EXPERIENCE:")
	for _, e := range p.Experience {
		line("")
		line("%s at %s", e.Title, e.Company)
		line("%s | %s", e.Period, e.Location)
		for _, r := range e.Responsibilities {
			line("  • %s", r)
		}
	}
	line("")
	line("PROJECTS:")
	for _, proj := range p.Projects {
		line("")
		header := fmt.Sprintf("📁 %s (%s) [%s]", proj.Title, proj.Year, proj.Category)
		if proj.Status != "" {
			header += " - " + proj.Status
		}
		line("%s", header)
		line("Technologies: %s", strings.Join(proj.Technologies, ", "))
		for _, d := range proj.Details {
			line("  • %s", d)
		}
	}
	line("")
	line("EDUCATION:")
	line("%s", p.Education.Degree)
	line("%s, %s", p.Education.Institution, p.Education.Location)
	line("%s", p.Education.Period)
	line("GPA: %s", p.Education.GPA)
	line("")
	line("CERTIFICATIONS:")
	for _, c := range p.Certifications {
		line("• %s", c)
	}
	line("")
	b.WriteString("=== END OF PORTFOLIO INFO ===")
	return b.String()
}
