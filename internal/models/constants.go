package models

const (
	// SystemPromptTemplate carries the retrieved document context. It is
	// only sent when a document is indexed and retrieval produced context.
	SystemPromptTemplate = "You are a helpful assistant. Use the following context from the document to answer questions:\n\n%s\n\nAnswer based on the context provided and be helpful and accurate."

	// Canned HTTP responses for the document upload flow.
	DocumentReadyResponse = "Thank you for providing your PDF document. I have analyzed it, so now you can ask me any questions regarding it!"
	UploadFailedResponse  = "It seems like the file was not uploaded correctly, can you try again. If the problem persists, try using a different file"
)
