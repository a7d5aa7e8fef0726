// Package dashboard 定义看板面板的固定查询，并通过共享缓存加载它们。
package dashboard

import "strings"

// Panel 一个看板面板，查询固定且不带参数
type Panel struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Query string `json:"query"`
	// Cacheable 结果与当前角色无关时才可缓存
	Cacheable bool `json:"cacheable"`
	Chart     bool `json:"chart"`
}

// 面板名称
const (
	PanelSurvivalByConditioning = "survival_by_conditioning"
	PanelGVHDByHLAE             = "gvhd_by_hla_e"
	PanelCD34ByCollection       = "cd34_by_collection"
	PanelDiseaseDistribution    = "disease_distribution"
	PanelRecordCounts           = "record_counts"
	PanelPatientSample          = "patient_sample"
	PanelGenderDistribution     = "gender_distribution"
	PanelRaceDistribution       = "race_distribution"
	PanelAgeDistribution        = "age_distribution"
	PanelTopConditions          = "top_conditions"
	PanelConditionsByVisitType  = "conditions_by_visit_type"
	PanelConditionTrends        = "condition_trends"
	PanelTopMedications         = "top_medications"
	PanelMedicationCategories   = "medication_categories"
	PanelPrescriptionTrends     = "prescription_trends"
)

// PatientSampleQuery 患者人口学样本，同时作为脱敏探测查询
const PatientSampleQuery = `SELECT person_id,
       person_source_value,
       CASE gender_concept_id WHEN 8507 THEN 'Male' ELSE 'Female' END AS gender,
       year_of_birth,
       birth_datetime,
       CASE race_concept_id
            WHEN 8527 THEN 'White'
            WHEN 8516 THEN 'Black'
            WHEN 8515 THEN 'Asian'
            WHEN 8557 THEN 'Native American'
            ELSE 'Other'
       END AS race,
       location_id
FROM omop_cdm.person
LIMIT 10`

var panels = []Panel{
	{
		Name:  PanelSurvivalByConditioning,
		Title: "Survival by Conditioning Intensity",
		Query: `SELECT CASE condint WHEN 1 THEN 'Myeloablative' WHEN 2 THEN 'Reduced Intensity' ELSE 'Unknown' END AS conditioning,
       COUNT(*) AS patients,
       ROUND(100.0 * AVG(CASE WHEN dead = 0 THEN 1 ELSE 0 END), 1) AS survival_pct,
       ROUND(100.0 * AVG(CASE WHEN dfs = 0 THEN 1 ELSE 0 END), 1) AS dfs_pct
FROM omop_cdm.cibmtr_haploidentical_transplant
GROUP BY 1
ORDER BY 1`,
		Cacheable: true,
		Chart:     true,
	},
	{
		Name:  PanelGVHDByHLAE,
		Title: "GVHD Rate by HLA-E Genotype",
		Query: `SELECT hlaegrp AS hla_e_group,
       COUNT(*) AS patients,
       ROUND(100.0 * AVG(CASE WHEN gvhdgrp = 1 THEN 1 ELSE 0 END), 1) AS gvhd_pct,
       ROUND(100.0 * AVG(CASE WHEN trm = 1 THEN 1 ELSE 0 END), 1) AS trm_pct
FROM omop_cdm.cibmtr_hla_e_outcomes
GROUP BY 1
ORDER BY 1`,
		Cacheable: true,
		Chart:     true,
	},
	{
		Name:  PanelCD34ByCollection,
		Title: "CD34+ Yield by Collection Length",
		Query: `SELECT CASE twodaycoll WHEN 1 THEN '2-Day' ELSE '1-Day' END AS collection,
       COUNT(*) AS donors,
       ROUND(AVG(ttl_cd34)::numeric, 2) AS avg_cd34,
       ROUND((PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY ttl_cd34))::numeric, 2) AS median_cd34
FROM omop_cdm.cibmtr_pbsc_collection
WHERE ttl_cd34 IS NOT NULL
GROUP BY 1
ORDER BY 1`,
		Cacheable: true,
		Chart:     true,
	},
	{
		Name:  PanelDiseaseDistribution,
		Title: "Disease Distribution (Top 10)",
		Query: `SELECT disease,
       COUNT(*) AS patients,
       ROUND(AVG(age)::numeric, 1) AS avg_age
FROM omop_cdm.cibmtr_haploidentical_transplant
GROUP BY disease
ORDER BY patients DESC, disease
LIMIT 10`,
		Cacheable: true,
		Chart:     true,
	},
	{
		// 行级策略随角色变化，不能缓存
		Name:  PanelRecordCounts,
		Title: "OMOP Record Counts",
		Query: `SELECT 'person' AS table_name, COUNT(*) AS records FROM omop_cdm.person
UNION ALL
SELECT 'visit_occurrence', COUNT(*) FROM omop_cdm.visit_occurrence
UNION ALL
SELECT 'condition_occurrence', COUNT(*) FROM omop_cdm.condition_occurrence`,
		Cacheable: false,
		Chart:     true,
	},
	{
		Name:      PanelPatientSample,
		Title:     "Patient Demographics Sample",
		Query:     PatientSampleQuery,
		Cacheable: false,
		Chart:     false,
	},

	// 以下面板读取受行级策略保护的OMOP临床表，结果随角色变化
	{
		Name:  PanelGenderDistribution,
		Title: "Patients by Gender",
		Query: `SELECT CASE gender_concept_id WHEN 8507 THEN 'Male' ELSE 'Female' END AS gender,
       COUNT(*) AS patients
FROM omop_cdm.person
GROUP BY 1
ORDER BY 1`,
		Chart: true,
	},
	{
		Name:  PanelRaceDistribution,
		Title: "Patients by Race",
		Query: `SELECT CASE race_concept_id
            WHEN 8527 THEN 'White'
            WHEN 8516 THEN 'Black'
            WHEN 8515 THEN 'Asian'
            WHEN 8557 THEN 'Native American'
            ELSE 'Other'
       END AS race,
       COUNT(*) AS patients
FROM omop_cdm.person
GROUP BY 1
ORDER BY patients DESC, race`,
		Chart: true,
	},
	{
		Name:  PanelAgeDistribution,
		Title: "Age Distribution",
		Query: `SELECT CASE
            WHEN age < 30 THEN '18-29'
            WHEN age < 40 THEN '30-39'
            WHEN age < 50 THEN '40-49'
            WHEN age < 60 THEN '50-59'
            WHEN age < 70 THEN '60-69'
            WHEN age < 80 THEN '70-79'
            ELSE '80+'
       END AS age_group,
       COUNT(*) AS patients
FROM (SELECT EXTRACT(YEAR FROM CURRENT_DATE)::int - year_of_birth AS age FROM omop_cdm.person) ages
GROUP BY 1
ORDER BY 1`,
		Chart: true,
	},
	{
		Name:  PanelTopConditions,
		Title: "Top Conditions by Frequency",
		Query: `SELECT condition_source_value AS icd10_code,
       CASE condition_source_value
            WHEN 'E11' THEN 'Type 2 Diabetes'
            WHEN 'I10' THEN 'Hypertension'
            WHEN 'J06.9' THEN 'Upper Respiratory Infection'
            WHEN 'I25.10' THEN 'Coronary Artery Disease'
            WHEN 'M54.5' THEN 'Low Back Pain'
            WHEN 'F32.9' THEN 'Major Depression'
            WHEN 'E78.5' THEN 'Hyperlipidemia'
            WHEN 'K21.0' THEN 'GERD'
            WHEN 'J45.909' THEN 'Asthma'
            WHEN 'M17.11' THEN 'Knee Osteoarthritis'
            ELSE condition_source_value
       END AS condition,
       COUNT(*) AS occurrences,
       COUNT(DISTINCT person_id) AS patients_affected
FROM omop_cdm.condition_occurrence
GROUP BY condition_source_value
ORDER BY occurrences DESC, icd10_code
LIMIT 10`,
		Chart: true,
	},
	{
		Name:  PanelConditionsByVisitType,
		Title: "Conditions by Visit Type",
		Query: `SELECT CASE v.visit_concept_id
            WHEN 9201 THEN 'Inpatient'
            WHEN 9202 THEN 'Outpatient'
            WHEN 9203 THEN 'Emergency'
            ELSE 'Other'
       END AS visit_type,
       COUNT(DISTINCT c.condition_occurrence_id) AS conditions,
       COUNT(DISTINCT c.person_id) AS patients
FROM omop_cdm.condition_occurrence c
JOIN omop_cdm.visit_occurrence v ON c.visit_occurrence_id = v.visit_occurrence_id
GROUP BY 1
ORDER BY conditions DESC, visit_type`,
		Chart: true,
	},
	{
		Name:  PanelConditionTrends,
		Title: "Condition Trends (Last 2 Years)",
		Query: `SELECT to_char(date_trunc('month', condition_start_date), 'YYYY-MM') AS month,
       COUNT(*) AS conditions
FROM omop_cdm.condition_occurrence
WHERE condition_start_date >= CURRENT_DATE - INTERVAL '2 years'
GROUP BY 1
ORDER BY 1`,
		Chart: true,
	},
	{
		Name:  PanelTopMedications,
		Title: "Top Medications by Prescription Volume",
		Query: `SELECT drug_source_value AS rxnorm_code,
       CASE drug_source_value
            WHEN '860975' THEN 'Metformin 500mg'
            WHEN '197361' THEN 'Lisinopril 10mg'
            WHEN '312961' THEN 'Atorvastatin 20mg'
            WHEN '197381' THEN 'Omeprazole 20mg'
            WHEN '849727' THEN 'Amlodipine 5mg'
            WHEN '1049621' THEN 'Metoprolol 25mg'
            WHEN '977430' THEN 'Levothyroxine 50mcg'
            WHEN '198211' THEN 'Losartan 50mg'
            WHEN '310798' THEN 'Acetaminophen 500mg'
            WHEN '311027' THEN 'Ibuprofen 200mg'
            ELSE drug_source_value
       END AS medication,
       COUNT(*) AS prescriptions,
       COUNT(DISTINCT person_id) AS patients,
       ROUND(AVG(days_supply)::numeric, 1) AS avg_days,
       ROUND(AVG(quantity)::numeric, 1) AS avg_quantity
FROM omop_cdm.drug_exposure
GROUP BY drug_source_value
ORDER BY prescriptions DESC, rxnorm_code
LIMIT 10`,
		Chart: true,
	},
	{
		Name:  PanelMedicationCategories,
		Title: "Medication Categories",
		Query: `SELECT CASE drug_source_value
            WHEN '860975' THEN 'Diabetes'
            WHEN '197361' THEN 'Cardiovascular'
            WHEN '312961' THEN 'Cardiovascular'
            WHEN '197381' THEN 'Gastrointestinal'
            WHEN '849727' THEN 'Cardiovascular'
            WHEN '1049621' THEN 'Cardiovascular'
            WHEN '977430' THEN 'Endocrine'
            WHEN '198211' THEN 'Cardiovascular'
            WHEN '310798' THEN 'Pain/Analgesic'
            WHEN '311027' THEN 'Pain/Analgesic'
            ELSE 'Other'
       END AS category,
       COUNT(*) AS prescriptions,
       COUNT(DISTINCT person_id) AS patients
FROM omop_cdm.drug_exposure
GROUP BY 1
ORDER BY prescriptions DESC, category`,
		Chart: true,
	},
	{
		Name:  PanelPrescriptionTrends,
		Title: "Prescription Trends (Last 2 Years)",
		Query: `SELECT to_char(date_trunc('month', drug_exposure_start_date), 'YYYY-MM') AS month,
       COUNT(*) AS prescriptions
FROM omop_cdm.drug_exposure
WHERE drug_exposure_start_date >= CURRENT_DATE - INTERVAL '2 years'
GROUP BY 1
ORDER BY 1`,
		Chart: true,
	},
}

// Panels 返回全部面板，顺序固定
func Panels() []Panel {
	return append([]Panel(nil), panels...)
}

// Lookup 按名称查找面板
func Lookup(name string) (Panel, bool) {
	for _, p := range panels {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Panel{}, false
}
