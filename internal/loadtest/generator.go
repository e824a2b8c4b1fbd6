package loadtest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/okian/jobfit/internal/domain/model"
	"github.com/okian/jobfit/internal/domain/skills"
)

// Ranges for generated grades and years.
const (
	minTenPointCGPA = 5.5
	tenPointSpread  = 4.4
	minYear         = 2012
	yearSpread      = 13
	dropSkillChance = 0.25
	extraSkillMax   = 3
	certChance      = 0.4
)

var (
	degreeSpellings = [][]string{
		{"B.Tech", "btech", "B Tech", "Bachelor of Technology"},
		{"B.E", "BE", "Bachelor of Engineering"},
		{"B.Sc", "bsc", "Bachelor of Science"},
		{"BCA", "bca"},
		{"MCA", "M.C.A"},
		{"M.Tech", "mtech"},
		{"B.Com", "bcom"},
		{"MBA", "mba"},
	}
	specializations = []string{"Computer Science", "Information Technology", "Electronics", "Data Science", "Finance", "Mechanical"}
	universities    = []string{"IIT Bombay", "University of Delhi", "VIT", "NIT Trichy", "Anna University", "BITS Pilani", ""}
	certifications  = []string{"AWS Certified Developer", "Google Data Analytics", "CKA", "Azure Fundamentals", "Oracle Java SE"}
)

type archetype struct {
	role           string
	required       []string
	degree         int
	specialization string
}

// Generator produces candidate profiles and labeled datasets whose skills
// follow a skill table. A Generator is not safe for concurrent use.
type Generator struct {
	rng        *rand.Rand
	archetypes []archetype
	skillPool  []string
}

// NewGenerator builds a generator over the first roles entries of table.
func NewGenerator(table *skills.Table, roles int, seed uint64) *Generator {
	names := table.Roles()
	if roles > 0 && roles < len(names) {
		names = names[:roles]
	}
	g := &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	seen := make(map[string]struct{})
	for i, role := range names {
		req := table.Required(role)
		g.archetypes = append(g.archetypes, archetype{
			role:           role,
			required:       req,
			degree:         i % len(degreeSpellings),
			specialization: specializations[i%len(specializations)],
		})
		for _, s := range req {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				g.skillPool = append(g.skillPool, s)
			}
		}
	}
	return g
}

// Roles returns the roles the generator draws from.
func (g *Generator) Roles() []string {
	out := make([]string, len(g.archetypes))
	for i, a := range g.archetypes {
		out[i] = a.role
	}
	return out
}

// Profile draws one noisy candidate profile and the role it was drawn for.
// Spellings, grade scales and skill casing vary the way free-text input does.
func (g *Generator) Profile() (model.CandidateProfile, string) {
	a := g.archetypes[g.rng.IntN(len(g.archetypes))]
	p := g.profile(a)

	spellings := degreeSpellings[a.degree]
	p.Degree = spellings[g.rng.IntN(len(spellings))]
	p.CGPA = model.RawNumber(g.rescale(p.CGPA))
	if g.rng.IntN(4) == 0 {
		p.GraduationYear += ".0"
	}
	for i, s := range p.Skills {
		switch g.rng.IntN(3) {
		case 0:
			p.Skills[i] = strings.ToLower(s)
		case 1:
			p.Skills[i] = " " + s + " "
		}
	}
	return p, a.role
}

// Dataset renders perRole labeled rows per role as a CSV training file.
func (g *Generator) Dataset(perRole int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"degree", "specialization", "course", "college", "year_of_completion", "cgpa", "skills", "certifications", "job_role"}); err != nil {
		return nil, err
	}
	for i := 0; i < perRole; i++ {
		for _, a := range g.archetypes {
			p := g.profile(a)
			row := []string{
				degreeSpellings[a.degree][0],
				p.Specialization,
				p.Course,
				p.College,
				p.GraduationYear.String(),
				p.CGPA.String(),
				strings.Join(p.Skills, ", "),
				strings.Join(p.Certifications, ", "),
				a.role,
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) profile(a archetype) model.CandidateProfile {
	skillsHave := make([]string, 0, len(a.required)+extraSkillMax)
	for _, s := range a.required {
		if g.rng.Float64() >= dropSkillChance {
			skillsHave = append(skillsHave, s)
		}
	}
	for n := g.rng.IntN(extraSkillMax + 1); n > 0; n-- {
		skillsHave = append(skillsHave, g.skillPool[g.rng.IntN(len(g.skillPool))])
	}

	certs := []string{}
	if g.rng.Float64() < certChance {
		certs = append(certs, certifications[g.rng.IntN(len(certifications))])
	}

	cgpa := minTenPointCGPA + g.rng.Float64()*tenPointSpread
	year := minYear + g.rng.IntN(yearSpread)
	return model.CandidateProfile{
		Degree:         degreeSpellings[a.degree][0],
		Specialization: a.specialization,
		Course:         a.specialization,
		College:        universities[g.rng.IntN(len(universities))],
		CGPA:           model.RawNumber(strconv.FormatFloat(cgpa, 'f', 2, 64)),
		GraduationYear: model.RawNumber(strconv.Itoa(year)),
		Skills:         skillsHave,
		Certifications: certs,
	}
}

// rescale renders a 10-point grade on a randomly chosen grading scale.
func (g *Generator) rescale(raw model.RawNumber) string {
	v, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return raw.String()
	}
	switch g.rng.IntN(3) {
	case 0:
		return strconv.FormatFloat(v*10, 'f', 1, 64)
	case 1:
		return strconv.FormatFloat(v*0.4, 'f', 2, 64)
	default:
		return raw.String()
	}
}
