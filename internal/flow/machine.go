// Package flow implements the conversation state machine that walks a worker
// through one maintenance report: house, address, work type, before photo,
// after photo, with a branch for resuming deferred tasks. The machine is
// transport-free: it consumes plain events against a Draft and returns Reply
// values; thin handlers adapt Telegram updates to events.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nusakov/remontbot/core/logger"
	"github.com/nusakov/remontbot/internal/reference"
	"github.com/nusakov/remontbot/internal/render"
	"github.com/nusakov/remontbot/internal/report"
	"github.com/nusakov/remontbot/internal/worker"
)

// SavePhoto persists the incoming photo to the given path. The transport
// layer supplies the actual download.
type SavePhoto func(path string) error

// Renderer produces the report document for a finished task.
// *render.Renderer is the production implementation.
type Renderer interface {
	Render(dir string, rec report.Record) (string, error)
}

// Options configure a Machine.
type Options struct {
	Houses   *reference.HouseDirectory
	Works    reference.WorkCatalog
	Alloc    *report.Allocator
	Store    *report.Store
	Renderer Renderer
	// Workers enables contact capture on first start when non-nil.
	Workers *worker.Store

	// ItemsPerPage sizes the pending-task picker pages. Default 30.
	ItemsPerPage int
	// MessageLimit chunks oversized text replies, in runes. Default 4096.
	MessageLimit int
}

// Machine drives one user's conversation. It holds only immutable
// configuration and shared stores; all per-conversation state lives in the
// Draft, so one Machine serves every session.
type Machine struct {
	houses   *reference.HouseDirectory
	works    reference.WorkCatalog
	alloc    *report.Allocator
	store    *report.Store
	renderer Renderer
	workers  *worker.Store

	perPage int
	msgLim  int
}

// Fixed reply keyboards.
var (
	actionKeyboard   = [][]string{{"Добавить фото выполненной работы", "Добавить фото позже"}}
	continueKeyboard = [][]string{{"Продолжить не выполненную работу", "Начать новую"}}
)

// User-facing messages. Kept identical to the deployed bot so crews see no
// difference after the rewrite.
const (
	msgAskPhone        = "Пожалуйста, введите ваш номер телефона:"
	msgAskFullName     = "Введите ваше ФИО:"
	msgAuthorized      = "Авторизация завершена. Выберите номер дома:"
	msgAskHouse        = "Введите номер дома:"
	msgNotAPhotoHouse  = "Пожалуйста, введите номер дома, а не фото."
	msgNotAPhotoDigit  = "Пожалуйста, введите цифру, а не фото."
	msgNotAPhoto       = "Пожалуйста, введите текст, а не фото."
	msgEnterNumber     = "Пожалуйста, введите число."
	msgBadAddressPick  = "Неверный выбор. Пожалуйста, выберите номер из списка."
	msgUseButtons      = "Пожалуйста, воспользуйтесь кнопками выше."
	msgSendPhoto       = "Пожалуйста, отправьте фото."
	msgSendAfterPhoto  = "Пришлите фото выполненной работы."
	msgChooseAction    = "Выберите действие:"
	msgStatusUpdated   = "Статус задачи обновлен. Выберите следующее действие."
	msgPendingHeader   = "Невыполненные задачи:"
	msgNoPending       = "Нет незавершенных задач."
	msgStartNew        = "Начните новую задачу. Введите номер дома."
	msgUnknownChoice   = "Неизвестный выбор. Пожалуйста, выберите действие из предложенных."
	msgNoReportDir     = "Ошибка: папка не найдена."
	msgTaskDirGone     = "Ошибка: папка задачи не найдена. Сессия завершена. Отправьте /start, чтобы начать заново."
	msgTaskGone        = "Задача не найдена. Пожалуйста, обновите список."
	msgCancelled       = "Сессия отменена. Отправьте /start, чтобы начать заново."
	msgPhotoSaveFailed = "Ошибка при сохранении фото. Пожалуйста, попробуйте еще раз."
	msgRecordFailed    = "Ошибка при создании отчета. Пожалуйста, попробуйте еще раз."
	msgStatusFailed    = "Ошибка при обновлении текстового файла. Пожалуйста, попробуйте еще раз."
	msgAllocFailed     = "Не удалось создать папку для отчета. Пожалуйста, попробуйте еще раз."
	msgRenderFailed    = "Ошибка при создании PDF. Пожалуйста, попробуйте еще раз."
	msgPickerFailed    = "Произошла ошибка при создании списка задач. Пожалуйста, попробуйте еще раз."
)

// NewMachine builds the state machine from loaded reference data and stores.
func NewMachine(opts Options) *Machine {
	perPage := opts.ItemsPerPage
	if perPage <= 0 {
		perPage = 30
	}
	msgLim := opts.MessageLimit
	if msgLim <= 0 {
		msgLim = 4096
	}
	return &Machine{
		houses:   opts.Houses,
		works:    opts.Works,
		alloc:    opts.Alloc,
		store:    opts.Store,
		renderer: opts.Renderer,
		workers:  opts.Workers,
		perPage:  perPage,
		msgLim:   msgLim,
	}
}

// Start begins (or restarts) a conversation. With contact capture enabled an
// unknown worker is asked for a phone number first.
func (m *Machine) Start(ctx context.Context, d *Draft) []Reply {
	d.ResetTask()
	if m.workers != nil {
		known, err := m.workers.Known(ctx, d.UserID)
		if err != nil {
			logger.SVCTasks.Warn("worker lookup failed",
				slog.String("event", "flow.start"),
				slog.Int64("user_id", d.UserID),
				slog.String("err", err.Error()),
			)
		} else if !known {
			d.State = StateAwaitingPhone
			return []Reply{text(msgAskPhone)}
		}
	}
	d.State = StateAwaitingHouse
	return []Reply{text(msgAskHouse)}
}

// Cancel terminates the conversation from any state. Partially written report
// folders are left as is.
func (m *Machine) Cancel(d *Draft) []Reply {
	d.End()
	return []Reply{text(msgCancelled)}
}

// Text dispatches a text message to the current state.
func (m *Machine) Text(ctx context.Context, d *Draft, input string) []Reply {
	input = strings.TrimSpace(input)
	switch d.State {
	case StateAwaitingPhone:
		d.Phone = input
		d.State = StateAwaitingFullName
		return []Reply{text(msgAskFullName)}
	case StateAwaitingFullName:
		return m.finishContact(ctx, d, input)
	case StateAwaitingHouse:
		return m.selectHouse(d, input)
	case StateAwaitingAddress:
		return m.selectAddress(d, input)
	case StateConfirmingAddress, StateAwaitingTaskPick:
		return []Reply{text(msgUseButtons)}
	case StateAwaitingWorkType:
		return m.selectWorkType(ctx, d, input)
	case StateAwaitingPhotoBefore, StateAwaitingPhotoAfter:
		return []Reply{text(msgSendPhoto)}
	case StateChoosingAction:
		return m.chooseAction(ctx, d, input)
	}
	return nil
}

// Photo dispatches an incoming photo to the current state. Outside the two
// photo states it is a modality error and re-prompts.
func (m *Machine) Photo(ctx context.Context, d *Draft, save SavePhoto) []Reply {
	switch d.State {
	case StateAwaitingHouse:
		return []Reply{text(msgNotAPhotoHouse)}
	case StateAwaitingAddress, StateAwaitingWorkType:
		return []Reply{text(msgNotAPhotoDigit)}
	case StateAwaitingPhotoBefore:
		return m.photoBefore(ctx, d, save)
	case StateAwaitingPhotoAfter:
		return m.photoAfter(ctx, d, save)
	}
	return []Reply{text(msgNotAPhoto)}
}

func (m *Machine) finishContact(ctx context.Context, d *Draft, fullName string) []Reply {
	d.FullName = fullName
	if m.workers != nil {
		err := m.workers.Save(ctx, worker.Worker{
			TelegramID: d.UserID,
			Phone:      d.Phone,
			FullName:   d.FullName,
		})
		if err != nil {
			logger.SVCTasks.Error("worker save failed",
				slog.String("event", "flow.contact"),
				slog.Int64("user_id", d.UserID),
				slog.String("err", err.Error()),
			)
		}
	}
	d.State = StateAwaitingHouse
	return []Reply{text(msgAuthorized)}
}

func (m *Machine) selectHouse(d *Draft, input string) []Reply {
	house := reference.Normalize(input)
	addresses, ok := m.houses.Lookup(house)
	if !ok {
		prompt := fmt.Sprintf(
			"Дом с номером %s не найден. Доступные номера домов: %s.\nПожалуйста, введите другой номер.",
			house, strings.Join(m.houses.Numbers(), ", "),
		)
		return chunked(prompt, m.msgLim)
	}

	d.House = house
	d.Addresses = addresses
	d.State = StateAwaitingAddress

	lines := []string{"Выберите адрес, введите соответствующую адресу цифру:"}
	for i, addr := range addresses {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, addr))
	}
	return chunked(joinLines(lines), m.msgLim)
}

func (m *Machine) selectAddress(d *Draft, input string) []Reply {
	choice, err := strconv.Atoi(input)
	if err != nil {
		return []Reply{text(msgEnterNumber)}
	}
	if choice < 1 || choice > len(d.Addresses) {
		return []Reply{text(msgBadAddressPick)}
	}

	d.Address = d.Addresses[choice-1]
	d.State = StateConfirmingAddress
	return []Reply{{
		Text: "Выбранный вами адрес: " + d.Address,
		Inline: [][]Button{
			{{Text: "Верно", Unique: CallbackConfirmAddress, Data: "correct"}},
			{{Text: "Выбрать другой", Unique: CallbackConfirmAddress, Data: "incorrect"}},
		},
	}}
}

// ConfirmAddress handles the address confirmation callback.
func (m *Machine) ConfirmAddress(d *Draft, confirmed bool) []Reply {
	if !confirmed {
		d.House = ""
		d.Addresses = nil
		d.Address = ""
		d.State = StateAwaitingHouse
		return []Reply{{Text: msgAskHouse, Edit: true}}
	}

	d.State = StateAwaitingWorkType
	lines := []string{"Выберите тип работ:"}
	for i, work := range m.works {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, work.Name))
	}
	replies := chunked(joinLines(lines), m.msgLim)
	replies[0].Edit = true
	return replies
}

func (m *Machine) selectWorkType(ctx context.Context, d *Draft, input string) []Reply {
	choice, err := strconv.Atoi(input)
	if err != nil {
		return []Reply{text(msgEnterNumber)}
	}
	work, ok := m.works.At(choice)
	if !ok {
		return []Reply{text(fmt.Sprintf(
			"Неверный выбор. Пожалуйста, выберите число от 1 до %d.", len(m.works),
		))}
	}

	d.WorkType = work.Name
	d.WorkData = work.Data

	dir, err := m.alloc.Allocate(d.Address)
	if err != nil {
		logger.SVCReports.Error("directory allocation failed",
			slog.String("event", "flow.allocate"),
			slog.String("address", d.Address),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgAllocFailed)}
	}
	d.ReportDir = dir
	d.State = StateAwaitingPhotoBefore
	return []Reply{text(fmt.Sprintf(
		"Вы выбрали тип работ: %s\nПришлите фото до начала работ.", work.Name,
	))}
}

func (m *Machine) photoBefore(ctx context.Context, d *Draft, save SavePhoto) []Reply {
	if d.ReportDir == "" {
		d.End()
		return []Reply{text(msgNoReportDir)}
	}

	path := report.PhotoBefore(d.ReportDir)
	if err := save(path); err != nil {
		logger.SVCReports.Error("before photo save failed",
			slog.String("event", "flow.photo_before"),
			slog.String("report_dir", d.ReportDir),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgPhotoSaveFailed)}
	}
	d.PhotoBefore = path

	rec := report.Record{
		House:    d.House,
		WorkType: d.WorkType,
		WorkData: d.WorkData,
		Status:   report.StatusPending,
	}
	if err := report.WriteRecord(d.ReportDir, rec); err != nil {
		logger.SVCReports.Error("record write failed",
			slog.String("event", "flow.photo_before"),
			slog.String("report_dir", d.ReportDir),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgRecordFailed)}
	}
	m.indexPut(ctx, rec, d.ReportDir)

	d.State = StateChoosingAction
	return []Reply{{Text: msgChooseAction, Keyboard: actionKeyboard}}
}

func (m *Machine) chooseAction(ctx context.Context, d *Draft, input string) []Reply {
	switch input {
	case "Добавить фото выполненной работы":
		d.State = StateAwaitingPhotoAfter
		return []Reply{text(msgSendAfterPhoto)}

	case "Добавить фото позже":
		// Re-affirming Pending is a deliberate no-op on the record content.
		if d.ReportDir != "" {
			if err := report.SetStatus(d.ReportDir, report.StatusPending); err != nil {
				logger.SVCReports.Warn("status re-affirm failed",
					slog.String("event", "flow.defer"),
					slog.String("report_dir", d.ReportDir),
					slog.String("err", err.Error()),
				)
			}
			m.indexStatus(ctx, d.ReportDir, report.StatusPending)
		}
		return []Reply{
			text(msgStatusUpdated),
			{Text: msgChooseAction, Keyboard: continueKeyboard},
		}

	case "Продолжить не выполненную работу":
		return m.taskPicker(ctx, d, 0, false)

	case "Начать новую":
		d.ResetTask()
		d.State = StateAwaitingHouse
		return []Reply{text(msgStartNew)}
	}
	return []Reply{text(msgUnknownChoice)}
}

// Tasks opens the pending-task picker, also reachable directly via /tasks.
func (m *Machine) Tasks(ctx context.Context, d *Draft) []Reply {
	return m.taskPicker(ctx, d, 0, false)
}

// TasksPage re-renders the picker on a pagination callback. The pending set
// is re-queried on every page render, so the list is never stale.
func (m *Machine) TasksPage(ctx context.Context, d *Draft, page int) []Reply {
	return m.taskPicker(ctx, d, page, true)
}

func (m *Machine) taskPicker(ctx context.Context, d *Draft, page int, edit bool) []Reply {
	tasks, err := m.store.Pending(ctx)
	if err != nil {
		logger.SVCTasks.Error("pending query failed",
			slog.String("event", "flow.picker"),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgPickerFailed)}
	}
	if len(tasks) == 0 {
		d.State = StateChoosingAction
		return []Reply{
			text(msgNoPending),
			{Text: msgChooseAction, Keyboard: continueKeyboard},
		}
	}

	if page < 0 {
		page = 0
	}
	// The set may have shrunk since the previous render; clamp to the last page.
	lastPage := (len(tasks) - 1) / m.perPage
	if page > lastPage {
		page = lastPage
	}
	start := page * m.perPage
	end := start + m.perPage
	if end > len(tasks) {
		end = len(tasks)
	}

	var rows [][]Button
	for i, task := range tasks[start:end] {
		rows = append(rows, []Button{{
			Text:   fmt.Sprintf("%d. Дом №%s, Тип работ: %s", i+1, task.House, task.WorkType),
			Unique: CallbackTaskPick,
			Data:   strconv.FormatInt(task.ID, 10),
		}})
	}
	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Text: "⬅️ Назад", Unique: CallbackTaskPage, Data: fmt.Sprintf("prev_%d", page)})
	}
	if len(tasks) > (page+1)*m.perPage {
		nav = append(nav, Button{Text: "Вперед ➡️", Unique: CallbackTaskPage, Data: fmt.Sprintf("next_%d", page)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	logger.SVCTasks.Debug("picker rendered",
		slog.String("event", "flow.picker"),
		slog.Int("page", page),
		slog.Int("pending_count", len(tasks)),
	)
	d.State = StateAwaitingTaskPick
	return []Reply{{Text: msgPendingHeader, Inline: rows, Edit: edit}}
}

// PickTask resumes the selected pending task: its context is loaded into the
// session and the flow jumps straight to the after photo, since the before
// photo already exists on disk.
func (m *Machine) PickTask(ctx context.Context, d *Draft, id int64) []Reply {
	task, err := m.store.ByID(ctx, id)
	if err != nil {
		logger.SVCTasks.Warn("task lookup failed",
			slog.String("event", "flow.pick"),
			slog.Int64("task_id", id),
			slog.String("err", err.Error()),
		)
		replies := []Reply{{Text: msgTaskGone, Edit: true}}
		return append(replies, m.taskPicker(ctx, d, 0, false)...)
	}

	rec, err := report.ReadRecord(task.ReportDir)
	if err != nil {
		// A resumed task pointing at a deleted directory ends the session;
		// guessing a path would corrupt the archive.
		logger.SVCTasks.Error("resumed task directory missing",
			slog.String("event", "flow.pick"),
			slog.Int64("task_id", id),
			slog.String("report_dir", task.ReportDir),
			slog.String("err", err.Error()),
		)
		d.End()
		return []Reply{{Text: msgTaskDirGone, Edit: true}}
	}

	d.House = rec.House
	d.WorkType = rec.WorkType
	d.WorkData = rec.WorkData
	d.ReportDir = task.ReportDir
	d.State = StateAwaitingPhotoAfter
	return []Reply{{
		Text: fmt.Sprintf(
			"Выбрана задача: Дом №%s, Тип работ: %s\n%s",
			rec.House, rec.WorkType, msgSendAfterPhoto,
		),
		Edit: true,
	}}
}

func (m *Machine) photoAfter(ctx context.Context, d *Draft, save SavePhoto) []Reply {
	if d.ReportDir == "" {
		d.End()
		return []Reply{text(msgNoReportDir)}
	}

	path := report.PhotoAfter(d.ReportDir)
	if err := save(path); err != nil {
		logger.SVCReports.Error("after photo save failed",
			slog.String("event", "flow.photo_after"),
			slog.String("report_dir", d.ReportDir),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgPhotoSaveFailed)}
	}
	d.PhotoAfter = path

	if err := report.SetStatus(d.ReportDir, report.StatusDone); err != nil {
		logger.SVCReports.Error("status update failed",
			slog.String("event", "flow.photo_after"),
			slog.String("report_dir", d.ReportDir),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgStatusFailed)}
	}
	m.indexStatus(ctx, d.ReportDir, report.StatusDone)

	rec := report.Record{
		House:    d.House,
		WorkType: d.WorkType,
		WorkData: d.WorkData,
		Status:   report.StatusDone,
	}
	pdfPath, err := m.renderer.Render(d.ReportDir, rec)
	if err != nil {
		logger.SVCRender.Error("render failed",
			slog.String("event", "flow.photo_after"),
			slog.String("report_dir", d.ReportDir),
			slog.String("err", err.Error()),
		)
		return []Reply{text(msgRenderFailed)}
	}

	replies := []Reply{{
		Document: &Document{
			Path:     pdfPath,
			FileName: render.PDFName,
			Caption:  "Отчет для дома №" + d.House,
		},
	}}
	replies = append(replies, m.pendingSummary(ctx)...)
	replies = append(replies, Reply{Text: msgChooseAction, Keyboard: continueKeyboard})

	d.State = StateChoosingAction
	return replies
}

func (m *Machine) pendingSummary(ctx context.Context) []Reply {
	tasks, err := m.store.Pending(ctx)
	if err != nil {
		logger.SVCTasks.Warn("pending query failed",
			slog.String("event", "flow.summary"),
			slog.String("err", err.Error()),
		)
		return nil
	}
	if len(tasks) == 0 {
		return []Reply{text(msgNoPending)}
	}
	lines := []string{msgPendingHeader}
	for i, task := range tasks {
		lines = append(lines, fmt.Sprintf("%d. Дом №%s, Тип работ: %s", i+1, task.House, task.WorkType))
	}
	return chunked(joinLines(lines), m.msgLim)
}

// The index is a query accelerator; the record file stays authoritative, so
// index write failures are logged but never surface to the user.
func (m *Machine) indexPut(ctx context.Context, rec report.Record, dir string) {
	if err := m.store.Put(ctx, rec, dir); err != nil {
		logger.SVCTasks.Error("index put failed",
			slog.String("event", "flow.index"),
			slog.String("report_dir", dir),
			slog.String("err", err.Error()),
		)
	}
}

func (m *Machine) indexStatus(ctx context.Context, dir string, status report.Status) {
	if err := m.store.SetStatus(ctx, dir, status); err != nil {
		logger.SVCTasks.Error("index status failed",
			slog.String("event", "flow.index"),
			slog.String("report_dir", dir),
			slog.String("status", string(status)),
			slog.String("err", err.Error()),
		)
	}
}
