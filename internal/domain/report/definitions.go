package report

// Definition maps one report section onto its scripts and normalizer.
type Definition struct {
	ID            string
	Number        int
	LabelEn       string
	LabelKh       string
	Scripts       []string
	DetailScripts []string
	Normalize     Normalizer
}

// Infant is the HIV-exposed infant report, in section order.
var Infant = []Definition{
	{
		ID:            "infant_hei_registered",
		Number:        1,
		LabelEn:       "HIV-exposed infants registered",
		LabelKh:       "ចំនួនទារកប្រឈមនឹងមេរោគអេដស៍ដែលបានចុះឈ្មោះ",
		Scripts:       []string{"infant_hei_registered_le2m", "infant_hei_registered_gt2m"},
		DetailScripts: []string{"infant_hei_registered_details"},
		Normalize: TwoBucketByAge(
			Label{En: "Age ≤ 2 months", Kh: "អាយុ ≤ ២ ខែ"},
			Label{En: "Age > 2 months", Kh: "អាយុ > ២ ខែ"},
		),
	},
	{
		ID:            "infant_hei_receiving_care",
		Number:        2,
		LabelEn:       "HIV-exposed infants receiving care",
		LabelKh:       "ចំនួនទារកប្រឈមនឹងមេរោគអេដស៍ដែលកំពុងទទួលការថែទាំ",
		Scripts:       []string{"infant_hei_receiving_care"},
		DetailScripts: []string{"infant_hei_receiving_care_details"},
		Normalize:     SingleTotal(Label{En: "Receiving care", Kh: "កំពុងទទួលការថែទាំ"}),
	},
	{
		ID:            "infant_pcr_birth",
		Number:        3,
		LabelEn:       "DNA PCR test at birth",
		LabelKh:       "តេស្ត DNA PCR ពេលកើត",
		Scripts:       []string{"infant_pcr_birth"},
		DetailScripts: []string{"infant_pcr_birth_details"},
		Normalize:     TriState("B"),
	},
	{
		ID:            "infant_pcr_4_6_weeks",
		Number:        4,
		LabelEn:       "DNA PCR test at 4-6 weeks",
		LabelKh:       "តេស្ត DNA PCR នៅអាយុ ៤-៦ សប្តាហ៍",
		Scripts:       []string{"infant_pcr_4_6_weeks"},
		DetailScripts: []string{"infant_pcr_4_6_weeks_details"},
		Normalize:     TriState("46"),
	},
	{
		ID:            "infant_confirmatory_pcr",
		Number:        5,
		LabelEn:       "Confirmatory DNA PCR test at 4-6 weeks",
		LabelKh:       "តេស្ត DNA PCR បញ្ជាក់នៅអាយុ ៤-៦ សប្តាហ៍",
		Scripts:       []string{"infant_confirmatory_pcr"},
		DetailScripts: []string{"infant_confirmatory_pcr_details"},
		Normalize:     TriState("c46"),
	},
	{
		ID:            "infant_outcomes",
		Number:        6,
		LabelEn:       "Infant outcomes",
		LabelKh:       "លទ្ធផលចុងក្រោយរបស់ទារក",
		Scripts:       []string{"infant_outcomes"},
		DetailScripts: []string{"infant_outcomes_details"},
		Normalize:     StatusBreakdown(),
	},
}

// PNTT is the partner notification report, in section order.
var PNTT = []Definition{
	{
		ID:        "pntt_women_tested",
		Number:    1,
		LabelEn:   "Pregnant women tested for HIV",
		LabelKh:   "ស្ត្រីមានផ្ទៃពោះដែលបានធ្វើតេស្តឈាមរកមេរោគអេដស៍",
		Scripts:   []string{"pntt_women_tested"},
		Normalize: DefaultPNTT(Label{En: "Tested", Kh: "បានធ្វើតេស្ត"}),
	},
	{
		ID:        "pntt_risk_factors",
		Number:    2,
		LabelEn:   "Risk factors",
		LabelKh:   "កត្តាហានិភ័យ",
		Scripts:   []string{"pntt_risk_factors"},
		Normalize: RiskFactorMatrix(),
	},
	{
		ID:        "pntt_partners_tested",
		Number:    3,
		LabelEn:   "Partners tested for HIV",
		LabelKh:   "ដៃគូដែលបានធ្វើតេស្តឈាមរកមេរោគអេដស៍",
		Scripts:   []string{"pntt_partners_tested"},
		Normalize: DefaultPNTT(Label{En: "Partners tested", Kh: "ដៃគូបានធ្វើតេស្ត"}),
	},
	{
		ID:        "pntt_women_positive",
		Number:    4,
		LabelEn:   "Pregnant women HIV positive",
		LabelKh:   "ស្ត្រីមានផ្ទៃពោះមានលទ្ធផលវិជ្ជមាន",
		Scripts:   []string{"pntt_women_positive"},
		Normalize: DefaultPNTT(Label{En: "HIV positive", Kh: "វិជ្ជមាន"}),
	},
}

// Reports names the section reports served over HTTP.
var Reports = map[string][]Definition{
	"infant": Infant,
	"pntt":   PNTT,
}
