package apperr

// Device errors
var (
	ErrDeviceDoesNotExist        = New(NotFound, "DeviceDoesNotExist", "")
	ErrDeviceNotFoundInDirectory = New(NotFound, "DeviceNotFoundInDirectory", "")
	ErrDirectoryRPC              = New(UpstreamFailure, "DirectoryRPCError", "")
	ErrDeviceNotEnrolled         = New(PreconditionFailed, "DeviceNotEnrolledError", "")
	ErrDeviceAlreadyEnrolled     = New(Conflict, "DeviceAlreadyEnrolledError", "")
	ErrDeviceDamaged             = New(PreconditionFailed, "DeviceDamagedError", "")
	ErrDeviceLost                = New(PreconditionFailed, "DeviceLostError", "")
	ErrUnassignedDevice          = New(Unauthorized, "UnassignedDeviceError", "")
	ErrNotAssignee               = New(Unauthorized, "UnauthorizedError", "")
	ErrAlreadyAssigned           = New(Conflict, "DeviceAssignedError", "")
	ErrExtend                    = New(PreconditionFailed, "ExtendError", "")
	ErrReturnNotPending          = New(PreconditionFailed, "ReturnNotPendingError", "")
	ErrGuestNotAllowed           = New(BadInput, "GuestNotAllowedError", "")
	ErrEnableGuest               = New(UpstreamFailure, "EnableGuestError", "")
	ErrIdentifierRequired        = New(BadInput, "IdentifierRequiredError", "")
	ErrBadURLSafeKey             = New(BadInput, "BadURLSafeKeyError", "")
	ErrConcurrentModification    = New(Conflict, "ConcurrentModificationError", "")
)

// Shelf errors
var (
	ErrShelfNotFound     = New(NotFound, "ShelfNotFoundError", "")
	ErrShelfDuplicate    = New(Conflict, "ShelfDuplicateError", "")
	ErrShelfCapacity     = New(Conflict, "ShelfCapacityError", "")
	ErrShelfDisabled     = New(PreconditionFailed, "ShelfDisabledError", "")
	ErrLatLong           = New(BadInput, "LatLongError", "")
	ErrUnableToMoveShelf = New(PreconditionFailed, "UnableToMoveToShelfError", "")
)

// Action and event errors
var (
	ErrMissingDevice  = New(BadInput, "MissingDeviceError", "")
	ErrMissingShelf   = New(BadInput, "MissingShelfError", "")
	ErrBadDevice      = New(PreconditionFailed, "BadDeviceError", "")
	ErrUnknownAction  = New(NotFound, "UnknownActionError", "")
	ErrActionLoader   = New(Internal, "ActionLoaderError", "")
	ErrEnqueue        = New(UpstreamFailure, "TaskEnqueueError", "")
	ErrRetryExhausted = New(Internal, "RetryBudgetExceededError", "")
)

// Misc errors
var (
	ErrKeyNotFound      = New(NotFound, "KeyNotFound", "")
	ErrBadPageToken     = New(BadInput, "BadPageToken", "malformed page token")
	ErrInvalidEmail     = New(UpstreamFailure, "InvalidEmailError", "")
	ErrTagNotFound      = New(NotFound, "TagNotFoundError", "")
	ErrTagProtected     = New(Unauthorized, "TagProtectedError", "")
	ErrQuestionNotFound = New(NotFound, "QuestionNotFoundError", "")
	ErrAnswerNotFound   = New(BadInput, "AnswerNotFoundError", "")
	ErrReminderNotFound = New(NotFound, "ReminderEventNotFoundError", "")
	ErrRoleNotFound     = New(NotFound, "RoleNotFoundError", "")
	ErrUserNotFound     = New(NotFound, "UserNotFoundError", "")
	ErrPermissionDenied = New(Unauthorized, "PermissionDeniedError", "")
	ErrBadInput         = New(BadInput, "BadRequest", "")
	ErrBackupUpload     = New(UpstreamFailure, "BackupUploadError", "")
)
