package errtranslator

import "encoding/json"

var mssqlErrCodes = map[int]error{
	2627: ErrDuplicatedKey,
	2601: ErrDuplicatedKey,
	547:  ErrForeignKeyViolated,
}

// MssqlErrTranslator probes the exported Number field so no SQL Server
// driver needs to be linked
type MssqlErrTranslator struct{}

type MssqlErr struct {
	Number  int    `json:"Number"`
	Message string `json:"Message"`
}

func (m *MssqlErrTranslator) Translate(err error) error {
	parsedErr, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		return err
	}

	var mssqlErr MssqlErr
	if unmarshalErr := json.Unmarshal(parsedErr, &mssqlErr); unmarshalErr != nil {
		return err
	}

	if kind, ok := mssqlErrCodes[mssqlErr.Number]; ok {
		return translated(kind, mssqlErr.Number, mssqlErr.Message, err)
	}
	return err
}
