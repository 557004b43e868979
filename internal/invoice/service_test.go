package invoice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/satwatch/internal/events"
	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger"
)

type mocks struct {
	repo    *invoice.MockRepository
	ledger  *ledger.MockClient
	rec     *invoice.MockReconciler
	scanner *invoice.MockScanner
	bus     *events.Bus
}

func newService(t *testing.T) (*invoice.Service, *mocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := &mocks{
		repo:    invoice.NewMockRepository(ctrl),
		ledger:  ledger.NewMockClient(ctrl),
		rec:     invoice.NewMockReconciler(ctrl),
		scanner: invoice.NewMockScanner(ctrl),
		bus:     events.New(),
	}

	svc := invoice.NewService(m.repo, m.ledger, m.rec, m.scanner, m.bus, invoice.Options{
		MinimumSatoshi: 10_000,
		PollInterval:   time.Millisecond,
	})

	return svc, m
}

func TestService_Create(t *testing.T) {
	type args struct {
		amount  int64
		content string
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m *mocks)
		wantErr   error
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{amount: 100_000_000, content: "order #42"},
			setupMock: func(m *mocks) {
				m.ledger.EXPECT().
					NewAddress(gomock.Any()).
					Return("bcrt1qfresh", nil)
				m.repo.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, inv *invoice.Invoice) error {
						inv.ID = uuid.New()
						inv.CreatedAt = time.Now()
						return nil
					})
				m.repo.EXPECT().
					AppendHistory(gomock.Any(), gomock.Any()).
					Return(nil)
			},
		},
		{
			name:    "BelowMinimum",
			args:    args{amount: 9_999, content: "order"},
			wantErr: invoice.ErrValidation,
		},
		{
			name:    "EmptyContent",
			args:    args{amount: 100_000},
			wantErr: invoice.ErrValidation,
		},
		{
			name: "AddressReservationFails",
			args: args{amount: 100_000, content: "order"},
			setupMock: func(m *mocks) {
				m.ledger.EXPECT().
					NewAddress(gomock.Any()).
					Return("", errors.New("wallet locked"))
			},
			wantErr: errors.New("wallet locked"),
		},
		{
			name: "RepoError",
			args: args{amount: 100_000, content: "order"},
			setupMock: func(m *mocks) {
				m.ledger.EXPECT().
					NewAddress(gomock.Any()).
					Return("bcrt1qfresh", nil)
				m.repo.EXPECT().
					CreateInvoice(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			got, err := svc.Create(context.Background(), tt.args.amount, tt.args.content)

			if tt.wantErr != nil {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "bcrt1qfresh", got.Address)
			assert.Equal(t, invoice.StatusUnpaid, got.Status)
			assert.True(t, got.Watched)
		})
	}
}

func TestService_Info(t *testing.T) {
	id := uuid.New()

	type testCase struct {
		name      string
		setupMock func(m *mocks)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "Success",
			setupMock: func(m *mocks) {
				m.rec.EXPECT().
					UpdateInvoice(gomock.Any(), id).
					Return(&invoice.State{FinalAmount: 100, FinalMatch: true}, nil)
				m.repo.EXPECT().
					InvoiceByID(gomock.Any(), id).
					Return(&invoice.Invoice{ID: id, Status: invoice.StatusPaid}, nil)
			},
		},
		{
			name: "NotFound",
			setupMock: func(m *mocks) {
				m.rec.EXPECT().
					UpdateInvoice(gomock.Any(), id).
					Return(nil, invoice.ErrNotFound)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			inv, state, err := svc.Info(context.Background(), id)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, inv)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, id, inv.ID)
			assert.Equal(t, invoice.StatusPaid, inv.Status)
			assert.True(t, state.FinalMatch)
		})
	}
}

func TestService_History(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id}, nil)
		m.repo.EXPECT().
			HistoryFor(gomock.Any(), id, gomock.Nil()).
			Return([]*invoice.History{
				{Seq: 1, InvoiceID: id, Action: invoice.ActionCreate},
				{Seq: 2, InvoiceID: id, Action: invoice.ActionReceive},
			}, nil)

		got, err := svc.History(context.Background(), id, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, invoice.ActionCreate, got[0].Action)
	})

	t.Run("UnknownInvoice", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(nil, invoice.ErrNotFound)

		_, err := svc.History(context.Background(), id, nil)
		assert.ErrorIs(t, err, invoice.ErrNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id}, nil)
		m.repo.EXPECT().
			DeleteInvoice(gomock.Any(), id).
			Return(nil)

		assert.NoError(t, svc.Delete(context.Background(), id))
	})

	t.Run("UnknownInvoice", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(nil, invoice.ErrNotFound)

		assert.ErrorIs(t, svc.Delete(context.Background(), id), invoice.ErrNotFound)
	})
}

func TestService_Updates(t *testing.T) {
	id := uuid.New()

	t.Run("FirstCallSeesEverything", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastUpdated).
			Return("", nil)
		m.repo.EXPECT().
			ListInvoices(gomock.Any(), gomock.Nil()).
			Return([]*invoice.Invoice{{ID: id, Status: invoice.StatusUnpaid}}, nil)
		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id, Status: invoice.StatusPaid}, nil)
		m.repo.EXPECT().
			SetState(gomock.Any(), invoice.StateLastUpdated, gomock.Any()).
			Return(nil)

		var seen []uuid.UUID
		err := svc.Updates(context.Background(), func(inv *invoice.Invoice, _ *invoice.State) error {
			seen = append(seen, inv.ID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{id}, seen)
	})

	t.Run("ConsumerErrorStopsIteration", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastUpdated).
			Return("", nil)
		m.repo.EXPECT().
			ListInvoices(gomock.Any(), gomock.Nil()).
			Return([]*invoice.Invoice{{ID: id}}, nil)
		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id}, nil)

		wantErr := errors.New("consumer failed")
		err := svc.Updates(context.Background(), func(*invoice.Invoice, *invoice.State) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("CorruptTimestamp", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastUpdated).
			Return("not a timestamp", nil)

		err := svc.Updates(context.Background(), func(*invoice.Invoice, *invoice.State) error {
			return nil
		})
		assert.Error(t, err)
	})
}

func TestService_WaitForStatus(t *testing.T) {
	id := uuid.New()

	t.Run("AlreadySettled", func(t *testing.T) {
		svc, m := newService(t)

		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id, Status: invoice.StatusPaid}, nil)

		err := svc.WaitForStatus(context.Background(), id, invoice.StatusPaid, time.Second)
		assert.NoError(t, err)
	})

	t.Run("ReachedDuringScan", func(t *testing.T) {
		svc, m := newService(t)

		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id, Status: invoice.StatusPendingPaid}, nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			DoAndReturn(func(context.Context) (string, []uuid.UUID, error) {
				m.bus.Publish(events.TopicInvoiceUpdated, events.InvoiceUpdated{
					InvoiceID: id,
					Status:    string(invoice.StatusPaid),
				})
				return "b1", []uuid.UUID{id}, nil
			}).
			AnyTimes()

		err := svc.WaitForStatus(context.Background(), id, invoice.StatusPaid, time.Second)
		assert.NoError(t, err)
	})

	t.Run("SuccessOutranksScanError", func(t *testing.T) {
		svc, m := newService(t)

		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id, Status: invoice.StatusUnpaid}, nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			DoAndReturn(func(context.Context) (string, []uuid.UUID, error) {
				m.bus.Publish(events.TopicInvoiceUpdated, events.InvoiceUpdated{
					InvoiceID: id,
					Status:    string(invoice.StatusPaid),
				})
				return "", nil, errors.New("rpc hiccup")
			})

		err := svc.WaitForStatus(context.Background(), id, invoice.StatusPaid, time.Second)
		assert.NoError(t, err)
	})

	t.Run("ScanError", func(t *testing.T) {
		svc, m := newService(t)

		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id, Status: invoice.StatusUnpaid}, nil)

		wantErr := errors.New("node down")
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			Return("", nil, wantErr)

		err := svc.WaitForStatus(context.Background(), id, invoice.StatusPaid, time.Second)
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("Timeout", func(t *testing.T) {
		svc, m := newService(t)

		m.rec.EXPECT().
			UpdateInvoice(gomock.Any(), id).
			Return(&invoice.State{}, nil)
		m.repo.EXPECT().
			InvoiceByID(gomock.Any(), id).
			Return(&invoice.Invoice{ID: id, Status: invoice.StatusUnpaid}, nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			Return("b1", nil, nil).
			AnyTimes()

		err := svc.WaitForStatus(context.Background(), id, invoice.StatusPaid, 20*time.Millisecond)
		assert.ErrorIs(t, err, invoice.ErrTimeout)
	})
}

func TestService_WaitForChange(t *testing.T) {
	t.Run("ReachesWantedBlock", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastBlockHash).
			Return("b0", nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			Return("b9", nil, nil)

		err := svc.WaitForChange(context.Background(), "b9", time.Second)
		assert.NoError(t, err)
	})

	t.Run("TipAdvances", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastBlockHash).
			Return("b0", nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			Return("b1", nil, nil)

		err := svc.WaitForChange(context.Background(), "", time.Second)
		assert.NoError(t, err)
	})

	t.Run("InvoiceAffectedAtSameTip", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastBlockHash).
			Return("b0", nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			Return("b0", []uuid.UUID{uuid.New()}, nil)

		err := svc.WaitForChange(context.Background(), "", time.Second)
		assert.NoError(t, err)
	})

	t.Run("Timeout", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().
			State(gomock.Any(), invoice.StateLastBlockHash).
			Return("b0", nil)
		m.scanner.EXPECT().
			Scan(gomock.Any()).
			Return("b0", nil, nil).
			AnyTimes()

		err := svc.WaitForChange(context.Background(), "", 20*time.Millisecond)
		assert.ErrorIs(t, err, invoice.ErrTimeout)
	})
}
