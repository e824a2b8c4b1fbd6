package normalize

// degreeRules are checked in order; the first alias found wins.
var degreeRules = []struct {
	label   string
	aliases []string
}{
	{"B.Tech", []string{"b.tech", "btech", "b tech", "bachelor of technology"}},
	{"M.Tech", []string{"m.tech", "mtech", "m tech", "master of technology"}},
	{"B.E.", []string{"b.e", "be", "bachelor of engineering"}},
	{"M.E.", []string{"m.e", "me", "master of engineering"}},
	{"BCA", []string{"bca", "bachelor of computer applications"}},
	{"MCA", []string{"mca", "master of computer applications"}},
	{"B.Sc", []string{"b.sc", "bsc", "bachelor of science"}},
	{"M.Sc", []string{"m.sc", "msc", "master of science"}},
	{"B.Com", []string{"b.com", "bcom", "bachelor of commerce"}},
	{"M.Com", []string{"m.com", "mcom", "master of commerce"}},
	{"BBA", []string{"bba", "bachelor of business administration"}},
	{"MBA", []string{"mba", "master of business administration"}},
	{"B.A.", []string{"b.a", "ba", "bachelor of arts"}},
	{"M.A.", []string{"m.a", "ma", "master of arts"}},
	{"Ph.D", []string{"ph.d", "phd", "doctor of philosophy", "doctorate"}},
}

// specializationCategories group keywords by domain:
// 1xx computing, 2xx engineering, 3xx business, 4xx sciences.
var specializationCategories = []struct {
	code     int
	keywords []string
}{
	{101, []string{"computer science", "cs", "cse"}},
	{102, []string{"artificial intelligence", "ai", "ai/ml", "machine learning"}},
	{103, []string{"data science", "data analytics"}},
	{104, []string{"information technology", "it"}},
	{105, []string{"software engineering"}},
	{106, []string{"cyber security", "cybersecurity"}},

	{201, []string{"electrical", "eee"}},
	{202, []string{"electronics", "ece"}},
	{203, []string{"mechanical"}},
	{204, []string{"civil"}},
	{205, []string{"chemical"}},

	{301, []string{"business administration"}},
	{302, []string{"finance"}},
	{303, []string{"marketing"}},
	{304, []string{"human resources", "hr"}},

	{401, []string{"mathematics"}},
	{402, []string{"physics"}},
	{403, []string{"chemistry"}},
	{404, []string{"biology"}},
}

var tier1Universities = []string{
	"indian institute of technology", "iit",
	"indian institute of management", "iim",
	"indian institute of science", "iisc",
	"bits pilani", "birla institute",
	"delhi technological university", "dtu",
	"netaji subhas university", "nsut",
}

var tier2Universities = []string{
	"nit", "national institute of technology",
	"international institute of information technology",
	"vit", "vellore institute",
	"srm", "manipal",
	"amity", "lovely professional", "lpu",
	"chandigarh university",
}

// universityAbbreviations expand a name only when the abbreviation is the
// entire name.
var universityAbbreviations = map[string]string{
	"iit":  "Indian Institute of Technology",
	"iim":  "Indian Institute of Management",
	"iisc": "Indian Institute of Science",
	"nit":  "National Institute of Technology",
	"bits": "Birla Institute of Technology and Science",
	"vit":  "Vellore Institute of Technology",
	"srm":  "SRM Institute of Science and Technology",
	"lpu":  "Lovely Professional University",
	"du":   "University of Delhi",
	"jnu":  "Jawaharlal Nehru University",
	"amu":  "Aligarh Muslim University",
}
