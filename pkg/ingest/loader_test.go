package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/aadhaar-pulse/pkg/cleaner"
	"github.com/hazyhaar/aadhaar-pulse/pkg/geo"
	"github.com/hazyhaar/aadhaar-pulse/pkg/records"
	"github.com/hazyhaar/aadhaar-pulse/pkg/store"
)

// fakeStore records calls instead of writing.
type fakeStore struct {
	calls   []string
	batches map[string][]int
	recs    []records.Record
	wiped   []string
	failOn  int // 1-based BulkInsert call to fail; 0 never
}

func newFakeStore() *fakeStore { return &fakeStore{batches: map[string][]int{}} }

func (f *fakeStore) Wipe(_ context.Context, cats []*records.Category) error {
	f.calls = append(f.calls, "wipe")
	for _, c := range cats {
		f.wiped = append(f.wiped, c.Name)
	}
	return nil
}

func (f *fakeStore) BulkInsert(_ context.Context, cat *records.Category, recs []records.Record) error {
	f.calls = append(f.calls, "insert:"+cat.Name)
	if f.failOn > 0 && len(f.calls)-1 == f.failOn {
		return errors.New("disk full")
	}
	f.batches[cat.Name] = append(f.batches[cat.Name], len(recs))
	f.recs = append(f.recs, recs...)
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func enrolmentCSV(rows int) string {
	var b strings.Builder
	b.WriteString("date,state,district,pincode,age_0_5,age_5_17,age_18_greater\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "2025-03-01,Goa,North Goa,403001,1,2,3\n")
	}
	return b.String()
}

func TestRun_BatchesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Enrolment_a.csv"), enrolmentCSV(12500))
	writeFile(t, filepath.Join(dir, "clean_Enrolment_b.csv"), enrolmentCSV(12500))

	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: dir}
	rep, err := l.Run(context.Background(), []*records.Category{records.Enrolment})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := fs.batches["enrolment"]
	if len(got) != 3 || got[0] != 10000 || got[1] != 10000 || got[2] != 5000 {
		t.Fatalf("batches = %v, want [10000 10000 5000]", got)
	}
	if fs.calls[0] != "wipe" {
		t.Errorf("first call = %q, want wipe", fs.calls[0])
	}
	cr := rep.Categories[0]
	if cr.Records != 25000 || cr.Batches != 3 || cr.Files != 2 {
		t.Errorf("report = %+v", cr)
	}
	if rep.RunID == "" {
		t.Error("empty run id")
	}
}

func TestRun_RowMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Biometric_Updates_combined.csv"),
		"date,state,district,bio_age_5_17,bio_age_17_\n"+
			"15-08-2025,West Bengal,Kolkata,4,5.0\n"+
			"not a date,,,x,-3\n")

	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: dir}
	if _, err := l.Run(context.Background(), []*records.Category{records.Biometric}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fs.recs) != 2 {
		t.Fatalf("records = %d, want 2", len(fs.recs))
	}

	r := fs.recs[0]
	if r.Date == nil || r.Date.Format("2006-01-02") != "2025-08-15" {
		t.Errorf("date = %v", r.Date)
	}
	if r.State != "West Bengal" || r.District != "Kolkata" || r.Pincode != "000000" {
		t.Errorf("geo = %q/%q/%q", r.State, r.District, r.Pincode)
	}
	if r.Bands[0] != 4 || r.Bands[1] != 5 {
		t.Errorf("bands = %v, want [4 5]", r.Bands)
	}

	r = fs.recs[1]
	if r.Date != nil {
		t.Errorf("unparseable date stored as %v", r.Date)
	}
	if r.State != "Unknown" || r.District != "Unknown" {
		t.Errorf("missing geo = %q/%q, want Unknown", r.State, r.District)
	}
	if r.Bands[0] != 0 || r.Bands[1] != 0 {
		t.Errorf("bands = %v, want zeros", r.Bands)
	}
}

func TestRun_PincodeCoercion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Demographic_combined.csv"),
		"state,district,pincode,demo_age_5_17,demo_age_17_greater\n"+
			"Goa,North Goa,403001.0,1,1\n"+
			"Goa,North Goa,1234567,1,1\n"+
			"Goa,North Goa,110,1,1\n")

	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: dir}
	if _, err := l.Run(context.Background(), []*records.Category{records.Demographic}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"403001", "000000", "000110"}
	for i, w := range want {
		if fs.recs[i].Pincode != w {
			t.Errorf("row %d pincode = %q, want %q", i, fs.recs[i].Pincode, w)
		}
	}
}

func TestRun_FileErrorIsLoggedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Enrolment_a.csv"), enrolmentCSV(3))
	// A directory matching the glob fails to read.
	if err := os.Mkdir(filepath.Join(dir, "clean_Enrolment_b.csv"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "clean_Enrolment_c.csv"), enrolmentCSV(2))

	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: dir}
	rep, err := l.Run(context.Background(), []*records.Category{records.Enrolment})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	cr := rep.Categories[0]
	if cr.FilesFailed != 1 || cr.Records != 5 {
		t.Errorf("report = %+v, want 1 failed and 5 records", cr)
	}
}

func TestRun_InsertErrorAborts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Enrolment_a.csv"), enrolmentCSV(5))

	fs := newFakeStore()
	fs.failOn = 1
	l := &Loader{Store: fs, SourceDir: dir, BatchSize: 2}
	_, err := l.Run(context.Background(), records.All())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want disk full", err)
	}
	for _, c := range fs.calls {
		if c == "insert:biometric" {
			t.Error("later category loaded after insert failure")
		}
	}
}

func TestRun_NoFiles(t *testing.T) {
	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: t.TempDir()}
	rep, err := l.Run(context.Background(), records.All())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Categories) != 3 {
		t.Fatalf("categories = %d", len(rep.Categories))
	}
	if len(fs.calls) != 1 {
		t.Errorf("calls = %v, want only wipe", fs.calls)
	}
}

func TestRun_SourceOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "enrol.csv"), enrolmentCSV(4))

	fs := newFakeStore()
	l := &Loader{
		Store:     fs,
		SourceDir: t.TempDir(),
		Sources:   map[string]string{"enrolment": filepath.Join(dir, "enrol*.csv")},
	}
	rep, err := l.Run(context.Background(), []*records.Category{records.Enrolment})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Categories[0].Records != 4 {
		t.Errorf("records = %d, want 4", rep.Categories[0].Records)
	}
}

func TestRun_IdempotentWithSQLite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Enrolment_combined.csv"), enrolmentCSV(7))
	writeFile(t, filepath.Join(dir, "clean_Biometric_Updates_combined.csv"),
		"date,state,district,pincode,bio_age_5_17,bio_age_17_greater\n2025-03-01,Goa,North Goa,403001,1,2\n")

	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "aadhaar.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	runs, err := OpenRunLog(ctx, s)
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}

	l := &Loader{Store: s, SourceDir: dir, Runs: runs}
	for i := 0; i < 2; i++ {
		if _, err := l.Run(ctx, records.All()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["enrolment"] != 7 || counts["biometric"] != 1 || counts["demographic"] != 0 {
		t.Errorf("counts = %v", counts)
	}

	list, err := runs.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 6 {
		t.Errorf("run rows = %d, want 6", len(list))
	}
}

func TestRun_SubsetKeepsOtherCategories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clean_Enrolment_combined.csv"), enrolmentCSV(3))
	writeFile(t, filepath.Join(dir, "clean_Biometric_Updates_combined.csv"),
		"date,state,district,pincode,bio_age_5_17,bio_age_17_greater\n2025-03-01,Goa,North Goa,403001,1,2\n")

	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "aadhaar.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	l := &Loader{Store: s, SourceDir: dir}
	if _, err := l.Run(ctx, records.All()); err != nil {
		t.Fatalf("full Run: %v", err)
	}
	if _, err := l.Run(ctx, []*records.Category{records.Enrolment}); err != nil {
		t.Fatalf("enrolment Run: %v", err)
	}
	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["enrolment"] != 3 || counts["biometric"] != 1 {
		t.Errorf("counts = %v, want enrolment:3 biometric:1", counts)
	}
}

func TestRun_WipesOnlyRequestedCategories(t *testing.T) {
	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: t.TempDir()}
	if _, err := l.Run(context.Background(), []*records.Category{records.Demographic}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fs.wiped) != 1 || fs.wiped[0] != "demographic" {
		t.Errorf("wiped = %v, want [demographic]", fs.wiped)
	}
}

func TestRun_CleanedFuzzyDateSurvives(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw", records.Enrolment.Folder)
	out := filepath.Join(root, "out")
	for _, d := range []string{raw, out} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(raw, "a.csv"), "Enrolment Date,State,District,age_0_5\n15-08-2020,Goa,North Goa,7\n")

	c := &cleaner.Cleaner{
		RawDir:   filepath.Join(root, "raw"),
		OutDir:   out,
		Detector: cleaner.NewDetector(nil),
		States:   geo.Default(),
	}
	if _, err := c.ProcessFolder(context.Background(), records.Enrolment); err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}

	fs := newFakeStore()
	l := &Loader{Store: fs, SourceDir: out}
	if _, err := l.Run(context.Background(), []*records.Category{records.Enrolment}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fs.recs) != 1 {
		t.Fatalf("records = %d, want 1", len(fs.recs))
	}
	r := fs.recs[0]
	if r.Date == nil || r.Date.Format("2006-01-02") != "2020-08-15" {
		t.Errorf("date = %v, want 2020-08-15", r.Date)
	}
	if r.Bands[0] != 7 {
		t.Errorf("bands = %v", r.Bands)
	}
}
