package autodiff

// PendingGrad reports whether the server has promised an asynchronous
// gradient computation whose result will land via a later notification.
func (v *Variable) PendingGrad() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pendingGrad
}

// PendingData is the data-field analogue of PendingGrad.
func (v *Variable) PendingData() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pendingData
}

// PendingGradFnID is the node id this Variable is waiting to be linked to,
// or "" once resolved.
func (v *Variable) PendingGradFnID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pendingGradFnID
}

// setPendingGradFnID is used by the decoder while enqueueing into the
// pending-grad-fn map.
func (v *Variable) setPendingGradFnID(id string) {
	v.mu.Lock()
	v.pendingGradFnID = id
	v.mu.Unlock()
}

// ClearPendingGrad resets the _pending_grad flag; invoked by the
// clear_pending_grad inbound handler (spec.md §4.6).
func (v *Variable) ClearPendingGrad() {
	v.mu.Lock()
	v.pendingGrad = false
	v.mu.Unlock()
}

// ClearPendingData resets the _pending_data flag; invoked by the
// clear_pending_data inbound handler (spec.md §4.6).
func (v *Variable) ClearPendingData() {
	v.mu.Lock()
	v.pendingData = false
	v.mu.Unlock()
}

// SetPendingGrad marks the variable as awaiting an asynchronous gradient,
// used by code paths that initiate such a computation.
func (v *Variable) SetPendingGrad() {
	v.mu.Lock()
	v.pendingGrad = true
	v.mu.Unlock()
}

// SetPendingData is the data-field analogue of SetPendingGrad.
func (v *Variable) SetPendingData() {
	v.mu.Lock()
	v.pendingData = true
	v.mu.Unlock()
}
