package flow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nusakov/remontbot/internal/reference"
	"github.com/nusakov/remontbot/internal/report"
	"github.com/nusakov/remontbot/internal/worker"
)

const testSchema = `
CREATE TABLE tasks (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    house      TEXT      NOT NULL,
    work_type  TEXT      NOT NULL,
    work_data  TEXT      NOT NULL DEFAULT '',
    report_dir TEXT      NOT NULL UNIQUE,
    status     TEXT      NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`

type stubRenderer struct {
	fail bool
}

func (s stubRenderer) Render(dir string, rec report.Record) (string, error) {
	if s.fail {
		return "", errors.New("render broke")
	}
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-stub"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func savePhoto(path string) error {
	return os.WriteFile(path, []byte("jpg"), 0o644)
}

func failingSave(string) error {
	return errors.New("download broke")
}

type fixture struct {
	machine *Machine
	store   *report.Store
	root    string
}

func newFixture(t *testing.T, opts func(*Options)) *fixture {
	t.Helper()

	tmp := t.TempDir()
	housesPath := filepath.Join(tmp, "houses.json")
	if err := os.WriteFile(housesPath, []byte(`{"16": ["Ufa, Bekhtereva St., h. 16"], "3": ["Addr A", "Addr B"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	worksPath := filepath.Join(tmp, "works.json")
	if err := os.WriteFile(worksPath, []byte(`[
		{"Наименование": "Покраска фасада", "Данные": "краска"},
		{"Наименование": "Ремонт кровли", "Данные": "шифер"}
	]`), 0o644); err != nil {
		t.Fatal(err)
	}

	houses, err := reference.LoadHouses(housesPath)
	if err != nil {
		t.Fatal(err)
	}
	works, err := reference.LoadWorkCatalog(worksPath)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sqlx.Connect("sqlite", filepath.Join(tmp, "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}

	root := filepath.Join(tmp, "reports")
	clock := func() time.Time { return time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC) }
	o := Options{
		Houses:   houses,
		Works:    works,
		Alloc:    report.NewAllocator(root).WithClock(clock),
		Store:    report.NewStore(db),
		Renderer: stubRenderer{},
	}
	if opts != nil {
		opts(&o)
	}
	return &fixture{machine: NewMachine(o), store: o.Store, root: root}
}

func wantText(t *testing.T, replies []Reply, idx int, want string) {
	t.Helper()
	if len(replies) <= idx {
		t.Fatalf("only %d replies, want index %d (%q)", len(replies), idx, want)
	}
	if replies[idx].Text != want {
		t.Fatalf("reply[%d] = %q, want %q", idx, replies[idx].Text, want)
	}
}

func wantPrefix(t *testing.T, replies []Reply, idx int, prefix string) {
	t.Helper()
	if len(replies) <= idx {
		t.Fatalf("only %d replies, want index %d", len(replies), idx)
	}
	if !strings.HasPrefix(replies[idx].Text, prefix) {
		t.Fatalf("reply[%d] = %q, want prefix %q", idx, replies[idx].Text, prefix)
	}
}

// runToBeforePhoto drives a fresh draft through house, address, confirmation,
// and work type up to the pending record being written.
func runToBeforePhoto(t *testing.T, f *fixture, d *Draft) string {
	t.Helper()
	ctx := context.Background()

	wantText(t, f.machine.Start(ctx, d), 0, msgAskHouse)
	if d.State != StateAwaitingHouse {
		t.Fatalf("state = %s", d.State)
	}

	replies := f.machine.Text(ctx, d, "16")
	wantPrefix(t, replies, 0, "Выберите адрес")
	if d.State != StateAwaitingAddress {
		t.Fatalf("state = %s", d.State)
	}
	if len(d.Addresses) != 1 || d.Addresses[0] != "Ufa, Bekhtereva St., h. 16" {
		t.Fatalf("addresses = %v", d.Addresses)
	}

	replies = f.machine.Text(ctx, d, "1")
	wantText(t, replies, 0, "Выбранный вами адрес: Ufa, Bekhtereva St., h. 16")
	if len(replies[0].Inline) != 2 {
		t.Fatalf("confirm keyboard rows = %d", len(replies[0].Inline))
	}
	if d.State != StateConfirmingAddress {
		t.Fatalf("state = %s", d.State)
	}

	replies = f.machine.ConfirmAddress(d, true)
	wantPrefix(t, replies, 0, "Выберите тип работ:")
	if !replies[0].Edit {
		t.Fatal("work menu must edit the confirmation message")
	}
	if d.State != StateAwaitingWorkType {
		t.Fatalf("state = %s", d.State)
	}

	replies = f.machine.Text(ctx, d, "2")
	wantText(t, replies, 0, "Вы выбрали тип работ: Ремонт кровли\nПришлите фото до начала работ.")
	if d.State != StateAwaitingPhotoBefore {
		t.Fatalf("state = %s", d.State)
	}

	wantDir := filepath.Join(f.root, "2024", "Ufa, Bekhtereva St., h. 16", "05", "report_1")
	if d.ReportDir != wantDir {
		t.Fatalf("report dir = %s, want %s", d.ReportDir, wantDir)
	}

	replies = f.machine.Photo(ctx, d, savePhoto)
	wantText(t, replies, 0, msgChooseAction)
	if len(replies[0].Keyboard) == 0 {
		t.Fatal("expected action keyboard")
	}
	if d.State != StateChoosingAction {
		t.Fatalf("state = %s", d.State)
	}

	rec, err := report.ReadRecord(d.ReportDir)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if !rec.Pending() || rec.House != "16" || rec.WorkType != "Ремонт кровли" || rec.WorkData != "шифер" {
		t.Fatalf("record = %+v", rec)
	}
	return d.ReportDir
}

func finishWithAfterPhoto(t *testing.T, f *fixture, d *Draft) {
	t.Helper()
	ctx := context.Background()

	replies := f.machine.Photo(ctx, d, savePhoto)
	if replies[0].Document == nil {
		t.Fatalf("expected document reply, got %+v", replies[0])
	}
	doc := replies[0].Document
	if doc.Path != filepath.Join(d.ReportDir, "report.pdf") {
		t.Fatalf("document path = %s", doc.Path)
	}
	if doc.Caption != "Отчет для дома №16" {
		t.Fatalf("caption = %q", doc.Caption)
	}
	if d.State != StateChoosingAction {
		t.Fatalf("state = %s", d.State)
	}

	rec, err := report.ReadRecord(d.ReportDir)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Pending() {
		t.Fatal("record must be done after the after-photo")
	}
	if _, err := os.Stat(filepath.Join(d.ReportDir, report.PhotoAfterName)); err != nil {
		t.Fatalf("after photo missing: %v", err)
	}

	task, err := f.store.ByDir(ctx, d.ReportDir)
	if err != nil {
		t.Fatalf("index lookup: %v", err)
	}
	if task.Status != string(report.StatusDone) {
		t.Fatalf("index status = %s", task.Status)
	}
}

func TestEndToEndDirectCompletion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	runToBeforePhoto(t, f, d)

	replies := f.machine.Text(ctx, d, "Добавить фото выполненной работы")
	wantText(t, replies, 0, msgSendAfterPhoto)
	if d.State != StateAwaitingPhotoAfter {
		t.Fatalf("state = %s", d.State)
	}

	finishWithAfterPhoto(t, f, d)
}

func TestEndToEndDeferThenResume(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	dir := runToBeforePhoto(t, f, d)

	replies := f.machine.Text(ctx, d, "Добавить фото позже")
	wantText(t, replies, 0, msgStatusUpdated)
	wantText(t, replies, 1, msgChooseAction)
	if d.State != StateChoosingAction {
		t.Fatalf("state = %s", d.State)
	}
	rec, err := report.ReadRecord(dir)
	if err != nil || !rec.Pending() {
		t.Fatalf("record after defer = %+v, %v", rec, err)
	}

	replies = f.machine.Text(ctx, d, "Продолжить не выполненную работу")
	wantText(t, replies, 0, msgPendingHeader)
	if d.State != StateAwaitingTaskPick {
		t.Fatalf("state = %s", d.State)
	}
	rows := replies[0].Inline
	if len(rows) != 1 || len(rows[0]) != 1 {
		t.Fatalf("picker rows = %v", rows)
	}
	if want := "1. Дом №16, Тип работ: Ремонт кровли"; rows[0][0].Text != want {
		t.Fatalf("picker button = %q, want %q", rows[0][0].Text, want)
	}
	id, err := strconv.ParseInt(rows[0][0].Data, 10, 64)
	if err != nil {
		t.Fatalf("picker payload %q: %v", rows[0][0].Data, err)
	}

	replies = f.machine.PickTask(ctx, d, id)
	wantPrefix(t, replies, 0, "Выбрана задача: Дом №16, Тип работ: Ремонт кровли")
	if d.State != StateAwaitingPhotoAfter {
		t.Fatalf("state = %s", d.State)
	}
	if d.ReportDir != dir {
		t.Fatalf("resumed dir = %s, want %s", d.ReportDir, dir)
	}

	finishWithAfterPhoto(t, f, d)
}

func TestSelectionValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}
	f.machine.Start(ctx, d)

	replies := f.machine.Text(ctx, d, "99")
	wantPrefix(t, replies, 0, "Дом с номером 99 не найден. Доступные номера домов: 16, 3.")
	if d.State != StateAwaitingHouse {
		t.Fatalf("state = %s", d.State)
	}

	replies = f.machine.Photo(ctx, d, savePhoto)
	wantText(t, replies, 0, msgNotAPhotoHouse)

	f.machine.Text(ctx, d, "3")
	replies = f.machine.Text(ctx, d, "abc")
	wantText(t, replies, 0, msgEnterNumber)
	replies = f.machine.Text(ctx, d, "5")
	wantText(t, replies, 0, msgBadAddressPick)
	if d.State != StateAwaitingAddress {
		t.Fatalf("state = %s", d.State)
	}

	f.machine.Text(ctx, d, "2")
	f.machine.ConfirmAddress(d, true)
	replies = f.machine.Text(ctx, d, "7")
	wantText(t, replies, 0, "Неверный выбор. Пожалуйста, выберите число от 1 до 2.")
	if d.State != StateAwaitingWorkType {
		t.Fatalf("state = %s", d.State)
	}
}

func TestRejectAddressReturnsToHouse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}
	f.machine.Start(ctx, d)
	f.machine.Text(ctx, d, "16")
	f.machine.Text(ctx, d, "1")

	replies := f.machine.ConfirmAddress(d, false)
	wantText(t, replies, 0, msgAskHouse)
	if d.State != StateAwaitingHouse {
		t.Fatalf("state = %s", d.State)
	}
	if d.House != "" || d.Address != "" {
		t.Fatalf("house/address not cleared: %q %q", d.House, d.Address)
	}
}

func TestTextWherePhotoExpected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	runToBeforePhoto(t, f, d)
	f.machine.Text(ctx, d, "Добавить фото выполненной работы")

	replies := f.machine.Text(ctx, d, "вот фото")
	wantText(t, replies, 0, msgSendPhoto)
	if d.State != StateAwaitingPhotoAfter {
		t.Fatalf("state = %s", d.State)
	}
}

func TestPhotoSaveFailureKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}
	f.machine.Start(ctx, d)
	f.machine.Text(ctx, d, "16")
	f.machine.Text(ctx, d, "1")
	f.machine.ConfirmAddress(d, true)
	f.machine.Text(ctx, d, "1")

	replies := f.machine.Photo(ctx, d, failingSave)
	wantText(t, replies, 0, msgPhotoSaveFailed)
	if d.State != StateAwaitingPhotoBefore {
		t.Fatalf("state = %s, must stay for retry", d.State)
	}

	// The retry succeeds against the same directory.
	replies = f.machine.Photo(ctx, d, savePhoto)
	wantText(t, replies, 0, msgChooseAction)
}

func TestRenderFailureKeepsState(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Renderer = stubRenderer{fail: true} })
	ctx := context.Background()
	d := &Draft{UserID: 1}

	runToBeforePhoto(t, f, d)
	f.machine.Text(ctx, d, "Добавить фото выполненной работы")

	replies := f.machine.Photo(ctx, d, savePhoto)
	wantText(t, replies, 0, msgRenderFailed)
	if d.State != StateAwaitingPhotoAfter {
		t.Fatalf("state = %s, must stay for retry", d.State)
	}
}

func TestResumedTaskWithDeletedDirectoryEndsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	dir := runToBeforePhoto(t, f, d)
	f.machine.Text(ctx, d, "Добавить фото позже")
	replies := f.machine.Text(ctx, d, "Продолжить не выполненную работу")
	id, err := strconv.ParseInt(replies[0].Inline[0][0].Data, 10, 64)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	replies = f.machine.PickTask(ctx, d, id)
	wantText(t, replies, 0, msgTaskDirGone)
	if d.State != "idle" {
		t.Fatalf("state = %s, session must end", d.State)
	}
}

func TestCancelFromAnyState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	runToBeforePhoto(t, f, d)
	replies := f.machine.Cancel(d)
	wantText(t, replies, 0, msgCancelled)
	if d.State != "idle" || d.ReportDir != "" {
		t.Fatalf("cancel left state=%s dir=%q", d.State, d.ReportDir)
	}

	// The partially written report folder stays on disk as pending debris.
	pending, err := f.store.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}

func TestStartNewResetsTask(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	runToBeforePhoto(t, f, d)
	replies := f.machine.Text(ctx, d, "Начать новую")
	wantText(t, replies, 0, msgStartNew)
	if d.State != StateAwaitingHouse {
		t.Fatalf("state = %s", d.State)
	}
	if d.ReportDir != "" || d.WorkType != "" {
		t.Fatalf("task fields not cleared: %q %q", d.ReportDir, d.WorkType)
	}
}

func TestUnknownActionReprompts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1}

	runToBeforePhoto(t, f, d)
	replies := f.machine.Text(ctx, d, "что-то другое")
	wantText(t, replies, 0, msgUnknownChoice)
	if d.State != StateChoosingAction {
		t.Fatalf("state = %s", d.State)
	}
}

func TestPickerPagination(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ItemsPerPage = 2 })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := report.Record{House: "16", WorkType: "W" + strconv.Itoa(i), Status: report.StatusPending}
		if err := f.store.Put(ctx, rec, "/dir/"+strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
	}

	d := &Draft{UserID: 1}
	replies := f.machine.Tasks(ctx, d)
	wantText(t, replies, 0, msgPendingHeader)
	rows := replies[0].Inline
	// Two tasks plus a navigation row with only "forward".
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	nav := rows[2]
	if len(nav) != 1 || nav[0].Data != "next_0" {
		t.Fatalf("nav = %+v", nav)
	}

	replies = f.machine.TasksPage(ctx, d, 1)
	rows = replies[0].Inline
	if !replies[0].Edit {
		t.Fatal("page render must edit the picker message")
	}
	nav = rows[2]
	if len(nav) != 2 || nav[0].Data != "prev_1" || nav[1].Data != "next_1" {
		t.Fatalf("nav on page 1 = %+v", nav)
	}

	// Last page: two tasks per page, five tasks, page 2 holds one task.
	replies = f.machine.TasksPage(ctx, d, 2)
	rows = replies[0].Inline
	if len(rows) != 2 {
		t.Fatalf("last page rows = %d, want 2", len(rows))
	}

	// Beyond the end clamps to the last page instead of rendering nothing.
	replies = f.machine.TasksPage(ctx, d, 9)
	if len(replies[0].Inline) != 2 {
		t.Fatalf("clamped page rows = %d, want 2", len(replies[0].Inline))
	}
}

func TestPickerEmpty(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := &Draft{UserID: 1, State: StateChoosingAction}

	replies := f.machine.Text(ctx, d, "Продолжить не выполненную работу")
	wantText(t, replies, 0, msgNoPending)
	wantText(t, replies, 1, msgChooseAction)
	if d.State != StateChoosingAction {
		t.Fatalf("state = %s", d.State)
	}
}

func TestContactCapture(t *testing.T) {
	// Contact capture needs a workers table alongside tasks.
	f := newFixture(t, nil)
	ctx := context.Background()

	db, err := sqlx.Connect("sqlite", filepath.Join(t.TempDir(), "workers.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE workers (
		telegram_id INTEGER PRIMARY KEY,
		phone       TEXT NOT NULL DEFAULT '',
		full_name   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	);`); err != nil {
		t.Fatal(err)
	}

	workers := worker.NewStore(db)
	f.machine.workers = workers

	d := &Draft{UserID: 7}
	replies := f.machine.Start(ctx, d)
	wantText(t, replies, 0, msgAskPhone)
	if d.State != StateAwaitingPhone {
		t.Fatalf("state = %s", d.State)
	}

	replies = f.machine.Text(ctx, d, "+7 900 000-00-00")
	wantText(t, replies, 0, msgAskFullName)

	replies = f.machine.Text(ctx, d, "Иванов Иван")
	wantText(t, replies, 0, msgAuthorized)
	if d.State != StateAwaitingHouse {
		t.Fatalf("state = %s", d.State)
	}

	known, err := workers.Known(ctx, 7)
	if err != nil || !known {
		t.Fatalf("worker not saved: %v %v", known, err)
	}

	// A known worker skips contact capture on restart.
	replies = f.machine.Start(ctx, d)
	wantText(t, replies, 0, msgAskHouse)
}

