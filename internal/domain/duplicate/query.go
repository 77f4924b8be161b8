package duplicate

// activeIDPoorSQL lists active patients holding both an IDpoor card and an
// ART number during the period. Patients who exited on or before the end
// date are excluded.
const activeIDPoorSQL = `
WITH last_visit AS (
    SELECT v.ClinicID, MAX(v.DatVisit) AS last_visit_date
    FROM tblavmain v
    WHERE v.DatVisit BETWEEN @StartDate AND @EndDate
    GROUP BY v.ClinicID
),
art AS (
    SELECT a.ClinicID, TRIM(a.ART) AS art_number, a.DaArt AS art_start_date
    FROM tblaart a
    WHERE a.ART IS NOT NULL AND TRIM(a.ART) <> ''
),
exited AS (
    SELECT DISTINCT s.ClinicID
    FROM tblavpatientstatus s
    WHERE s.Da <= @EndDate
),
idpoor AS (
    SELECT l.ClinicID, MAX(l.IDPoorNumber) AS idpoor_number
    FROM tblidpoorlink l
    WHERE l.IDPoorNumber IS NOT NULL AND TRIM(l.IDPoorNumber) <> ''
    GROUP BY l.ClinicID
)
SELECT
    @siteCode AS site_code,
    art.art_number,
    p.ClinicID AS clinic_id,
    p.PatientName AS patient_name,
    p.Sex AS sex,
    idpoor.idpoor_number,
    art.art_start_date,
    lv.last_visit_date
FROM tblaimain p
JOIN art ON art.ClinicID = p.ClinicID
JOIN idpoor ON idpoor.ClinicID = p.ClinicID
JOIN last_visit lv ON lv.ClinicID = p.ClinicID
LEFT JOIN exited ON exited.ClinicID = p.ClinicID
WHERE exited.ClinicID IS NULL
`
