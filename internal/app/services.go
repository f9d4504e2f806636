package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	notes "github.com/odyssey-erp/odyssey-crm/internal/delivery/notes"
	deliveryReturns "github.com/odyssey-erp/odyssey-crm/internal/delivery/returns"
	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/branches"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/departments"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/products"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/suppliers"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/taxes"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-crm/internal/procurement"
	"github.com/odyssey-erp/odyssey-crm/internal/rbac"
	"github.com/odyssey-erp/odyssey-crm/internal/roles"
	"github.com/odyssey-erp/odyssey-crm/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-crm/internal/sales/orders"
	"github.com/odyssey-erp/odyssey-crm/internal/sales/quotations"
	salesReturns "github.com/odyssey-erp/odyssey-crm/internal/sales/returns"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// ServiceParams are the process-wide resources the domain services share.
type ServiceParams struct {
	Config   *Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Renderer documents.Renderer
	Mailer   documents.Mailer
}

// Services holds every domain service of the API, wired to its collaborators.
type Services struct {
	Principals  *rbac.Cache
	RBAC        rbac.Middleware
	Idempotency *shared.IdempotencyStore

	Taxes       *taxes.Service
	Products    *products.Service
	Customers   *customers.Service
	Suppliers   *suppliers.Service
	Departments *departments.Service
	Branches    *branches.Service
	Roles       *roles.Service
	Users       *users.Service
	Purchasing  *procurement.Service

	Quotations      *quotations.Service
	Orders          *orders.Service
	Invoices        *invoices.Service
	InvoiceReturns  *salesReturns.Service
	DeliveryNotes   *notes.Service
	DeliveryReturns *deliveryReturns.Service
}

// NewServices builds the service graph. Collaborators are constructed before
// the services that convert into them: invoices and delivery notes before
// sales orders, sales orders before quotations, invoice returns before
// delivery note returns.
func NewServices(p ServiceParams) *Services {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := p.Pool
	region := p.Config.DefaultPhoneRegion

	ids := sequence.NewGenerator(pool, p.Metrics)
	audit := shared.NewAuditLogger(pool)
	journal := documents.NewPGJournal(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	publisher := documents.Publisher{Renderer: p.Renderer, Mailer: p.Mailer, Journal: journal}

	principals := rbac.NewCache(rbac.NewService(pool), p.Redis, p.Config.PrincipalCacheTTL, logger)

	s := &Services{
		Principals:  principals,
		RBAC:        rbac.Middleware{Principals: principals, Logger: logger},
		Idempotency: idempotency,
	}

	s.Taxes = taxes.NewService(taxes.NewRepository(pool))
	s.Products = products.NewService(products.NewRepository(pool), ids, s.Taxes)
	s.Customers = customers.NewService(customers.NewRepository(pool), ids, region)
	s.Suppliers = suppliers.NewService(suppliers.NewRepository(pool), ids, region)
	s.Departments = departments.NewService(departments.NewRepository(pool))
	s.Branches = branches.NewService(branches.NewRepository(pool))
	s.Roles = roles.NewService(roles.NewRepository(pool), audit, principals)
	s.Users = users.NewService(users.NewRepository(pool), audit, principals)
	s.Purchasing = procurement.NewService(procurement.NewRepository(pool), ids, audit)

	s.Invoices = invoices.NewService(invoices.NewRepository(pool), invoices.Dependencies{
		IDs:         ids,
		Catalog:     s.Products,
		Customers:   s.Customers,
		Journal:     journal,
		Publisher:   publisher,
		Recorder:    p.Metrics,
		Idempotency: idempotency,
		Logger:      logger,
	})
	s.DeliveryNotes = notes.NewService(notes.NewRepository(pool), notes.Dependencies{
		IDs:         ids,
		Catalog:     s.Products,
		Customers:   s.Customers,
		Journal:     journal,
		Publisher:   publisher,
		Recorder:    p.Metrics,
		Idempotency: idempotency,
		Logger:      logger,
	})
	s.Orders = orders.NewService(orders.NewRepository(pool), orders.Dependencies{
		IDs:         ids,
		Catalog:     s.Products,
		Customers:   s.Customers,
		Inventory:   s.Products,
		Deliveries:  s.DeliveryNotes,
		Invoices:    s.Invoices,
		Purchasing:  s.Purchasing,
		Journal:     journal,
		Publisher:   publisher,
		Recorder:    p.Metrics,
		Idempotency: idempotency,
		Logger:      logger,
	})
	s.Quotations = quotations.NewService(quotations.NewRepository(pool), quotations.Dependencies{
		IDs:         ids,
		Catalog:     s.Products,
		Customers:   s.Customers,
		Orders:      s.Orders,
		Journal:     journal,
		Publisher:   publisher,
		Locker:      sweepLocker(p.Redis),
		SweepTTL:    p.Config.ExpirySweepLockTTL,
		Recorder:    p.Metrics,
		Idempotency: idempotency,
		Logger:      logger,
	})
	s.InvoiceReturns = salesReturns.NewService(salesReturns.NewRepository(pool), salesReturns.Dependencies{
		IDs:         ids,
		Invoices:    s.Invoices,
		Customers:   s.Customers,
		Journal:     journal,
		Publisher:   publisher,
		Recorder:    p.Metrics,
		Idempotency: idempotency,
		Logger:      logger,
	})
	s.DeliveryReturns = deliveryReturns.NewService(deliveryReturns.NewRepository(pool), deliveryReturns.Dependencies{
		IDs:            ids,
		Catalog:        s.Products,
		Inventory:      s.Products,
		InvoiceReturns: s.InvoiceReturns,
		Customers:      s.Customers,
		Journal:        journal,
		Publisher:      publisher,
		Recorder:       p.Metrics,
		Idempotency:    idempotency,
		PhoneRegion:    region,
		Logger:         logger,
	})
	return s
}

// Handlers returns the HTTP handlers mounted under /api.
func (s *Services) Handlers(logger *slog.Logger) []Mounter {
	mw := s.RBAC
	return []Mounter{
		quotations.NewHandler(logger, s.Quotations, mw),
		orders.NewHandler(logger, s.Orders, mw),
		invoices.NewHandler(logger, s.Invoices, mw),
		salesReturns.NewHandler(logger, s.InvoiceReturns, mw),
		notes.NewHandler(logger, s.DeliveryNotes, mw),
		deliveryReturns.NewHandler(logger, s.DeliveryReturns, mw),
		products.NewHandler(logger, s.Products, mw),
		taxes.NewHandler(logger, s.Taxes, mw),
		customers.NewHandler(logger, s.Customers, mw),
		suppliers.NewHandler(logger, s.Suppliers, mw),
		departments.NewHandler(logger, s.Departments, mw),
		branches.NewHandler(logger, s.Branches, mw),
		roles.NewHandler(logger, s.Roles, mw),
		users.NewHandler(logger, s.Users, mw),
		procurement.NewHandler(logger, s.Purchasing, mw),
		rbac.NewPermissionsHandler(mw),
	}
}

// sweepLocker returns nil without Redis so the expiry sweep runs unguarded
// on single-node setups.
func sweepLocker(client *redis.Client) quotations.SweepLocker {
	if client == nil {
		return nil
	}
	return cache.NewLocker(client)
}
