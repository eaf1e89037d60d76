package httpapi

import (
	"context"
	"net/http"

	"qms-data/internal/domain"
	"qms-data/internal/service"

	"go.uber.org/zap"
)

// MasterDataHandler items, customers and suppliers
type MasterDataHandler struct {
	apiHandler
	master *service.MasterDataService
}

func NewMasterDataHandler(users *service.UserService, master *service.MasterDataService, logger *zap.Logger) *MasterDataHandler {
	return &MasterDataHandler{apiHandler: apiHandler{users: users, logger: logger}, master: master}
}

func (r *Router) RegisterMasterDataRoutes(h *MasterDataHandler) {
	registerMaster(r, h.apiHandler, "/master/items", masterOps[domain.MasterItem, service.ItemRequest]{
		name:   "Item",
		list:   h.master.ListItems,
		get:    h.master.GetItem,
		save:   h.master.SaveItem,
		delete: h.master.DeleteItem,
	})
	registerMaster(r, h.apiHandler, "/master/customers", masterOps[domain.Customer, service.CustomerRequest]{
		name:   "Customer",
		list:   h.master.ListCustomers,
		get:    h.master.GetCustomer,
		save:   h.master.SaveCustomer,
		delete: h.master.DeleteCustomer,
	})
	registerMaster(r, h.apiHandler, "/master/suppliers", masterOps[domain.Supplier, service.SupplierRequest]{
		name:   "Supplier",
		list:   h.master.ListSuppliers,
		get:    h.master.GetSupplier,
		save:   h.master.SaveSupplier,
		delete: h.master.DeleteSupplier,
	})
}

// masterOps the CRUD surface shared by the three master collections
type masterOps[T any, Req any] struct {
	name   string
	list   func(context.Context, service.ListRequest) (*service.Page[T], error)
	get    func(context.Context, string) (*T, error)
	save   func(context.Context, *domain.User, string, Req) (*T, error)
	delete func(context.Context, *domain.User, string) (bool, error)
}

func registerMaster[T any, Req any](r *Router, h apiHandler, path string, ops masterOps[T, Req]) {
	r.Handle(api(http.MethodGet, path), func(w http.ResponseWriter, req *http.Request) {
		if _, ok := h.actor(w, req); !ok {
			return
		}
		page, err := ops.list(req.Context(), listRequest(req))
		reply(h, w, "List"+ops.name+"s", page, err)
	})
	r.Handle(api(http.MethodGet, path+"/{id}"), func(w http.ResponseWriter, req *http.Request) {
		if _, ok := h.actor(w, req); !ok {
			return
		}
		rec, err := ops.get(req.Context(), req.PathValue("id"))
		reply(h, w, "Get"+ops.name, rec, err)
	})
	save := func(w http.ResponseWriter, req *http.Request) {
		actor, ok := h.actor(w, req)
		if !ok {
			return
		}
		var payload Req
		if !h.body(w, req, &payload) {
			return
		}
		rec, err := ops.save(req.Context(), actor, req.PathValue("id"), payload)
		reply(h, w, "Save"+ops.name, rec, err)
	}
	r.Handle(api(http.MethodPost, path), save)
	r.Handle(api(http.MethodPut, path+"/{id}"), save)
	r.Handle(api(http.MethodDelete, path+"/{id}"), func(w http.ResponseWriter, req *http.Request) {
		actor, ok := h.actor(w, req)
		if !ok {
			return
		}
		deactivated, err := ops.delete(req.Context(), actor, req.PathValue("id"))
		reply(h, w, "Delete"+ops.name, map[string]any{"deleted": !deactivated, "deactivated": deactivated}, err)
	})
}
