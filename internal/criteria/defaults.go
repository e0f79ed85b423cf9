package criteria

const (
	// DefaultTechnicalPassMark is the technical pass mark used when the RFP does not state one.
	DefaultTechnicalPassMark = 70.0
	// DefaultFinancialShare is the financial share of the award when the RFP does not state a mix.
	DefaultFinancialShare = 30.0
)

// DefaultFinancialRule is the award rule assumed when the RFP text does not
// spell one out: technical qualification first, then the lowest acceptable
// price among the qualified proposals.
const DefaultFinancialRule = "بعد اجتياز التقييم الفني (≥ 70%) يتم تقييم العروض المالية وترسية المنافسة على صاحب العرض المالي الأقل سعرًا من بين العروض المؤهلة فنيًا"

// DefaultTechnicalNames are the technical criteria used when neither the RFP
// text nor its summary yields any.
var DefaultTechnicalNames = []string{
	"القدرات الفنية (إدارة مرافق)",
	"الخبرات السابقة في مجال عمل مشابه",
	"قدرات الفريق الفني",
	"خطة إدارة المشروع",
	"خطة إدارة المخاطر ومدة الاستجابة للمشاكل التقنية",
}

// DefaultWeightedCriteria carries the weights an RFP summary falls back to.
func DefaultWeightedCriteria() []Weighted {
	weights := []float64{30, 20, 20, 20, 10}
	out := make([]Weighted, 0, len(DefaultTechnicalNames))
	for i, name := range DefaultTechnicalNames {
		out = append(out, Weighted{Name: name, Weight: weights[i]})
	}
	return out
}

// nonCriteriaHints are contract terms that sit next to evaluation language
// in an RFP but are never scoring criteria.
var nonCriteriaHints = []string{
	"الضمان", "الزكاة", "الضرائب", "ضريبة", "السلامة", "الصيانة", "النظافة",
	"اشتراطات", "سداد الأجرة", "المستندات", "السجلات", "التراخيص",
	"نموذج العطاء", "بيان الأسعار", "غرامات", "جزاءات", "تأمين", "تأمينات",
	"إخلاء مسؤولية", "التزامات",
}

// financialNameHints mark criteria about the bidder's financial standing.
var financialNameHints = []string{
	"رأس المال", "سيولة", "السيولة", "ربحية", "الربحية", "مديون", "المديونية",
	"القوة المالية", "نسبة مالية", "ملاءة", "الملاءة",
}
